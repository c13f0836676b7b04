package backend

import "time"

// PlaceholderName is the marker blob that keeps an otherwise empty directory
// alive in a blob-only tree.
const PlaceholderName = ".gitkeep"

type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// Timestamp returns When as unix seconds.
func (s Signature) Timestamp() int64 {
	return s.When.Unix()
}

// TimezoneOffset returns the offset of When in minutes east of UTC.
func (s Signature) TimezoneOffset() int {
	_, offset := s.When.Zone()
	return offset / 60
}

type Commit struct {
	ID      string
	Message string
	Author  Signature
	Parents []string
}
