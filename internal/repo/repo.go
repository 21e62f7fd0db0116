package repo

import "time"

// Conversion records the output produced for a source file at a given size and mtime.
type Conversion struct {
	SourcePath string
	Size       int64
	ModTime    time.Time
	OutputPath string
	Converter  string
	CreatedAt  time.Time
}

type Repository interface {
	// SaveConversion saves or replaces the conversion recorded for c.SourcePath.
	SaveConversion(c *Conversion) error

	// GetConversion returns the conversion for sourcePath.
	// Returns nil, nil if not found.
	GetConversion(sourcePath string) (*Conversion, error)

	DeleteConversion(sourcePath string) error

	ListConversions() ([]*Conversion, error)

	Close() error
}
