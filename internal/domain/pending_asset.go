package domain

import "time"

// PendingAsset - загруженный, но еще не закрепленный файл
type PendingAsset struct {
	ID               string    `json:"id" db:"id"`
	Disk             string    `json:"disk" db:"disk"`
	Path             string    `json:"path" db:"path"`
	Name             string    `json:"name" db:"name"`
	FileName         string    `json:"file_name" db:"file_name"`
	MIMEType         string    `json:"mime_type" db:"mime_type"`
	Size             int64     `json:"size" db:"size"`
	CustomProperties JSONMap   `json:"custom_properties" db:"custom_properties"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	TTLSeconds       int64     `json:"ttl_seconds" db:"ttl_seconds"`
}

// ExpiresAt возвращает момент, после которого загрузка считается истекшей
func (p *PendingAsset) ExpiresAt() time.Time {
	return p.CreatedAt.Add(time.Duration(p.TTLSeconds) * time.Second)
}

// IsExpired сообщает, что now строго позже createdAt + ttl
func (p *PendingAsset) IsExpired(now time.Time) bool {
	return now.After(p.ExpiresAt())
}
