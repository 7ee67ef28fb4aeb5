// Package model contains the records shared by the storage API, its stores and
// the background worker.
package model

import (
	"time"
)

// UploadStatus describes where a stored upload is in its lifecycle.
type UploadStatus string

const (
	StatusStored     UploadStatus = "stored"
	StatusProcessing UploadStatus = "processing"
	StatusReady      UploadStatus = "ready"
	StatusReminded   UploadStatus = "reminded"
	StatusExpired    UploadStatus = "expired"
	StatusFailed     UploadStatus = "failed"
)

// StoredUpload is the metadata kept for an accepted upload. The blob itself
// lives under ObjectKey in the blob store.
type StoredUpload struct {
	ID               string       `json:"id"`
	Owner            string       `json:"owner"`
	FileName         string       `json:"fileName"`
	OriginalFileName string       `json:"originalFileName"`
	FileType         string       `json:"fileType"`
	ContentType      string       `json:"contentType"`
	Size             int64        `json:"size"`
	TagNames         []string     `json:"tagNames"`
	ObjectKey        string       `json:"objectKey"`
	Status           UploadStatus `json:"status"`
	Reminder         *time.Time   `json:"reminder,omitempty"`
	ExpireAt         *time.Time   `json:"expireAt,omitempty"`
	Content          string       `json:"content,omitempty"`
	Message          string       `json:"message,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// Clone returns a deep copy so stores can hand out records without sharing
// their slices or time pointers.
func (u *StoredUpload) Clone() *StoredUpload {
	if u == nil {
		return nil
	}
	c := *u
	if u.TagNames != nil {
		c.TagNames = append([]string(nil), u.TagNames...)
	}
	if u.Reminder != nil {
		t := *u.Reminder
		c.Reminder = &t
	}
	if u.ExpireAt != nil {
		t := *u.ExpireAt
		c.ExpireAt = &t
	}
	return &c
}
