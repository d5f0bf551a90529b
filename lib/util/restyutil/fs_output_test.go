package restyutil

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"testudot/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func TestDumpResponses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<p>" + r.URL.Query().Get("q") + "</p>"))
	}))
	defer server.Close()

	dir := filepath.Join(t.TempDir(), "dump")
	output, err := NewFilesystemOutput(dir, telemetry.NewRecordingAPI())
	require.NoError(t, err)

	client := resty.New().SetBaseURL(server.URL)
	DumpResponses(client, output, func(req *resty.Request) string {
		return req.QueryParam.Get("q")
	})

	for _, q := range []string{"a/b", "c"} {
		_, err = client.R().SetQueryParam("q", q).Get("/")
		require.NoError(t, err)
	}

	first, err := os.ReadFile(filepath.Join(dir, "001-a_b.html"))
	require.NoError(t, err)
	require.Equal(t, "<p>a/b</p>", string(first))
	second, err := os.ReadFile(filepath.Join(dir, "002-c.html"))
	require.NoError(t, err)
	require.Equal(t, "<p>c</p>", string(second))
}

func TestWriteFailureIsReported(t *testing.T) {
	tel := telemetry.NewRecordingAPI()
	output, err := NewFilesystemOutput(t.TempDir(), tel)
	require.NoError(t, err)

	output.Write(filepath.Join("missing", "page.html"), "body")
	require.Len(t, tel.Reports("warning", report_fs_output_write), 1)
}
