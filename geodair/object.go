package geodair

import (
	"fmt"
	"path"
	"path/filepath"
)

// Object is a file in object storage such as Cloud Storage.
type Object struct {
	Name   string `json:"name"`
	Bucket string `json:"bucket"`
	Size   int64  `json:"size"`
}

// FullPath returns full path of the object beginning with gs://.
// Objects of a local directory storage are returned as file paths.
func (o *Object) FullPath() string {
	if filepath.IsAbs(o.Bucket) {
		return filepath.Join(o.Bucket, filepath.FromSlash(o.Name))
	}
	return fmt.Sprintf("gs://%s/%s", o.Bucket, o.Name)
}

// Ext returns the extension of the object name such as ".csv".
func (o *Object) Ext() string {
	return path.Ext(o.Name)
}
