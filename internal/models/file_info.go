package models

import "time"

// FileInfo describes the candidate file of an upload attempt.
type FileInfo struct {
	Name       string    `json:"name" msgpack:"name"`
	Size       int64     `json:"size" msgpack:"size"`
	SizeLabel  string    `json:"sizeLabel" msgpack:"sizeLabel"`
	SelectedAt time.Time `json:"selectedAt" msgpack:"selectedAt"`
}
