// Package aggregate merges per-source results and renders the two output
// playlists.
package aggregate

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
)

var ErrNoBase = errors.New("base playlist not found")

var chnoRe = regexp.MustCompile(`tvg-chno="(\d+)"`)

// LoadBase reads the hand-maintained playlist the live entries are appended
// to. lastChno is the highest tvg-chno in it, or 0.
func LoadBase(path string) (lines []string, lastChno int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, fmt.Errorf("%w: %s", ErrNoBase, path)
		}
		return nil, 0, fmt.Errorf("read base playlist: %w", err)
	}

	for _, m := range chnoRe.FindAllSubmatch(data, -1) {
		if n, err := strconv.Atoi(string(m[1])); err == nil && n > lastChno {
			lastChno = n
		}
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan base playlist: %w", err)
	}
	return lines, lastChno, nil
}
