package subscriptions

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testudot/internal/components/assert"
	"testudot/internal/components/telemetry"
)

const (
	report_file_read  = "file.read"
	report_file_write = "file.write"
)

// FileDirectory keeps the mapping as a single json object of email -> courses.
type FileDirectory struct {
	path string
	tel  telemetry.API

	mutex sync.Mutex
}

func NewFileDirectory(path string, tel telemetry.API) *FileDirectory {
	assert.NotEmptyStr(path)
	assert.NotNil(tel)
	return &FileDirectory{
		path: path,
		tel:  telemetry.NewScopedAPI("subscriptions", tel),
	}
}

// read returns an empty mapping when the file does not exist, a corrupt file
// is an error so that the next write does not wipe it.
func (d *FileDirectory) read() (Mapping, error) {
	buff, err := os.ReadFile(d.path)
	if os.IsNotExist(err) {
		return Mapping{}, nil
	}
	if err != nil {
		d.tel.ReportBroken(report_file_read, err, d.path)
		return nil, err
	}
	out := Mapping{}
	err = json.Unmarshal(buff, &out)
	if err != nil {
		err = fmt.Errorf("decode '%s': %w", d.path, err)
		d.tel.ReportBroken(report_file_read, err)
		return nil, err
	}
	// a file holding `null` decodes to a nil map
	if out == nil {
		out = Mapping{}
	}
	return out, nil
}

func (d *FileDirectory) write(mapping Mapping) error {
	buff, err := json.MarshalIndent(mapping, "", "  ")
	if err != nil {
		return err
	}
	err = os.MkdirAll(filepath.Dir(d.path), 0755)
	if err == nil {
		tmp := d.path + ".tmp"
		err = os.WriteFile(tmp, buff, 0644)
		if err == nil {
			err = os.Rename(tmp, d.path)
		}
	}
	if err != nil {
		d.tel.ReportBroken(report_file_write, err, d.path)
		return err
	}
	return nil
}

func (d *FileDirectory) ListAll(ctx context.Context) (Mapping, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.read()
}

func (d *FileDirectory) Add(ctx context.Context, email string, courses []string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	courses, err = normalizeCourses(courses)
	if err != nil {
		return err
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	mapping, err := d.read()
	if err != nil {
		return err
	}
	mapping[email] = merge(mapping[email], courses)
	return d.write(mapping)
}

func (d *FileDirectory) Remove(ctx context.Context, email string) (bool, error) {
	email = strings.TrimSpace(email)
	d.mutex.Lock()
	defer d.mutex.Unlock()

	mapping, err := d.read()
	if err != nil {
		return false, err
	}
	_, found := mapping[email]
	if !found {
		return false, nil
	}
	delete(mapping, email)
	return true, d.write(mapping)
}
