package restyutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testudot/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
)

const report_fs_output_write = "restyutil.fs-output.write"

// InstrumentOutput receives the body of every response a client gets.
type InstrumentOutput interface {
	Write(id string, contents string)
}

// FilesystemOutput writes each response body to its own file in a directory,
// it is meant for capturing fixtures while debugging a scraper.
type FilesystemOutput struct {
	directory string
	tel       telemetry.API
}

func NewFilesystemOutput(dir string, tel telemetry.API) (FilesystemOutput, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir, tel: tel}, nil
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id), []byte(contents), 0600)
	if err != nil {
		o.tel.ReportWarning(report_fs_output_write, err, id)
	}
}

var unsafeChars = strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")

// DumpResponses hands every response body of the client to the output, the id
// is derived from the request with name and made safe to use as a file name.
func DumpResponses(client *resty.Client, output InstrumentOutput, name func(req *resty.Request) string) {
	var count atomic.Int64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id := fmt.Sprintf("%03d-%s.html", count.Add(1), unsafeChars.Replace(name(res.Request)))
		output.Write(id, res.String())
		return nil
	})
}
