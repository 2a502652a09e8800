package hierarchy

import (
	"encoding/json"
	"time"

	"github.com/dustin/go-humanize"
)

// Kind discriminates the Entry variants.
type Kind string

const (
	KindFolder Kind = "folder"
	KindFile   Kind = "file"
)

// Entry is one row of a projected level: either a Folder or a File.
// The interface is sealed; no other type implements it.
type Entry interface {
	Kind() Kind

	// DisplayName is the path segment shown at this level.
	DisplayName() string

	entry()
}

// Folder is a synthetic entry standing for every key that continues below
// this level under the same first segment.
type Folder struct {
	Name string

	// FullPath is the navigation path that opens this folder.
	FullPath string
}

func (Folder) Kind() Kind            { return KindFolder }
func (f Folder) DisplayName() string { return f.Name }
func (Folder) entry()                {}

// MarshalJSON adds the "kind" discriminant.
func (f Folder) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind     Kind   `json:"kind"`
		Name     string `json:"name"`
		FullPath string `json:"fullPath"`
	}{KindFolder, f.Name, f.FullPath})
}

// File is an object stored directly at this level.
type File struct {
	Name         string
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
	ContentType  string
}

func (File) Kind() Kind            { return KindFile }
func (f File) DisplayName() string { return f.Name }
func (File) entry()                {}

// SizeHuman formats Size for display ("1.2 MB"). Unknown sizes render as "".
func (f File) SizeHuman() string {
	if f.Size < 0 {
		return ""
	}
	return humanize.Bytes(uint64(f.Size))
}

// MarshalJSON adds the "kind" discriminant and a human-readable size.
func (f File) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind         Kind      `json:"kind"`
		Name         string    `json:"name"`
		Key          string    `json:"key"`
		Size         int64     `json:"size"`
		SizeHuman    string    `json:"sizeHuman"`
		LastModified time.Time `json:"lastModified"`
		ETag         string    `json:"etag,omitempty"`
		ContentType  string    `json:"contentType,omitempty"`
	}{KindFile, f.Name, f.Key, f.Size, f.SizeHuman(), f.LastModified, f.ETag, f.ContentType})
}

// Breadcrumb is one ancestor segment of the navigation path.
type Breadcrumb struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Level is the projection of a flat listing at one navigation path.
type Level struct {
	// Prefix is the canonical key prefix the level was projected at.
	Prefix      string       `json:"prefix"`
	Entries     []Entry      `json:"entries"`
	Breadcrumbs []Breadcrumb `json:"breadcrumbs"`
}

// Summary counts the entries of a level.
type Summary struct {
	Folders int   `json:"folders"`
	Files   int   `json:"files"`
	Bytes   int64 `json:"bytes"`
}

// Summary tallies folders, files and the bytes held by the files.
func (l Level) Summary() Summary {
	var s Summary
	for _, e := range l.Entries {
		switch v := e.(type) {
		case Folder:
			s.Folders++
		case File:
			s.Files++
			if v.Size > 0 {
				s.Bytes += v.Size
			}
		}
	}
	return s
}
