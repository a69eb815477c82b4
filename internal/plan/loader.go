package plan

import (
	"time"

	"github.com/spf13/afero"

	logx "ontime/pkg/logx"
)

// Loader loads plans with freshly discovered candidate files on every call,
// so files added since startup are picked up at the next day or reload.
type Loader struct {
	FS       afero.Fs
	Files    func() ([]string, error)
	CacheDir string
	Log      logx.Logger
}

func (l *Loader) Load(date time.Time) (*Plan, error) {
	files, err := l.Files()
	if err != nil {
		return nil, err
	}
	log := l.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	return Load(l.FS, date, files, l.CacheDir, log)
}
