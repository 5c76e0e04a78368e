// Package suitefile reads and writes suites as YAML documents:
//
//	name: smoke
//	tests:
//	  - category: api
//	    name: Homepage
//	    api: {method: GET, endpoint: "https://example.com", expectedStatus: 200}
package suitefile

import (
	"fmt"
	"io"
	"os"

	"github.com/testkube/suiterunner/internal/suite"
	"gopkg.in/yaml.v3"
)

type File struct {
	Name  string              `yaml:"name,omitempty"`
	Tests []suite.Declaration `yaml:"tests"`
}

func Decode(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return &File{}, nil
		}
		return nil, fmt.Errorf("failed to parse suite: %w", err)
	}
	for i, d := range f.Tests {
		if _, err := suite.ParseCategory(string(d.Category)); err != nil {
			return nil, fmt.Errorf("test %d: %w", i, err)
		}
	}
	return &f, nil
}

func Load(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open suite file: %w", err)
	}
	defer fh.Close()
	return Decode(fh)
}

func Encode(w io.Writer, f *File) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("failed to encode suite: %w", err)
	}
	return enc.Close()
}

func Save(path string, f *File) error {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create suite file: %w", err)
	}
	if err := Encode(fh, f); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

// FromSnapshot lists the tests of snap as declarations in run order.
func FromSnapshot(name string, snap suite.Snapshot) *File {
	f := &File{Name: name}
	for _, tc := range snap.Tests() {
		f.Tests = append(f.Tests, suite.Declaration{Category: tc.Category, Payload: tc.Payload})
	}
	return f
}
