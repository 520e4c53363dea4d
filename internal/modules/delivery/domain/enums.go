//go:generate go run github.com/abice/go-enum --file=$GOFILE --names --nocase

package domain

// MediaKind is the transport method a post is delivered with
// ENUM(text,photo,video,animation,document)
type MediaKind string
