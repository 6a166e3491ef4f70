package logtail

import (
	"bufio"
	"io"
	"os"
)

// window bounds how much of the file end is scanned.
const window = 64 << 10

// Tail returns up to n trailing lines of the file at path. Only the last 64KiB
// are read; a partial first line in that window is dropped.
func Tail(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	offset := info.Size() - window
	if offset < 0 {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}

	ring := make([]string, 0, n)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 4096), window)
	first := offset > 0
	for sc.Scan() {
		if first {
			first = false
			continue
		}
		if len(ring) == n {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, sc.Text())
	}
	return ring, sc.Err()
}

// Personal.AI order the ending
