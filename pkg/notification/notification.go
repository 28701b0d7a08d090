package notification

import (
	"time"
)

type Action int

const (
	ActionDuplicates Action = iota + 1
	ActionHardlinks
	ActionClean
)

type Sender interface {
	CanSend() bool
	Send(title string, description string, runTime time.Duration, fields []Field, dryRun bool) error
	BuildField(action Action, options BuildOptions) Field
	Name() string
}

type Field struct {
	Name  string
	Value string
}

type BuildOptions struct {
	// duplicate / hardlink set detail
	Digest  string
	FileID  string
	Size    int64
	Members []string

	// clean detail
	Keep    string
	Removed int
	Freed   int64
}
