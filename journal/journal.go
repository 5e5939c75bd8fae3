package journal

import (
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/rigado/hciuart"
)

type fileJournal struct {
	filename string
	max      int
	lock     sync.RWMutex
}

// New keeps measurements in filename. With max > 0 only the newest max
// entries are kept.
func New(filename string, max int) hciuart.Journal {
	j := fileJournal{
		filename: filename,
		max:      max,
	}

	return &j
}

func (j *fileJournal) Append(m hciuart.Measurement) error {
	j.lock.Lock()
	defer j.lock.Unlock()

	all, err := j.loadExisting()
	if err != nil {
		return err
	}

	all = append(all, m)
	if j.max > 0 && len(all) > j.max {
		all = all[len(all)-j.max:]
	}

	return j.store(all)
}

func (j *fileJournal) Load() ([]hciuart.Measurement, error) {
	j.lock.RLock()
	defer j.lock.RUnlock()

	return j.loadExisting()
}

func (j *fileJournal) Clear() error {
	j.lock.Lock()
	defer j.lock.Unlock()

	err := os.Remove(j.filename)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}

func (j *fileJournal) loadExisting() ([]hciuart.Measurement, error) {
	_, err := os.Stat(j.filename)
	if os.IsNotExist(err) {
		return []hciuart.Measurement{}, nil
	}

	in, err := os.ReadFile(j.filename)
	if err != nil {
		return nil, err
	}

	var all []hciuart.Measurement
	err = jsoniter.Unmarshal(in, &all)
	if err != nil {
		return nil, err
	}

	return all, nil
}

func (j *fileJournal) store(all []hciuart.Measurement) error {
	out, err := jsoniter.Marshal(all)
	if err != nil {
		return err
	}

	return os.WriteFile(j.filename, out, 0644)
}
