// Package version holds the distribution metadata of gripper2.
package version

const (
	Name        = "gripper2"
	Version     = "v0.1.0"
	Author      = "Adam Ewing"
	AuthorEmail = "adam.ewing@gmail.com"
	Description = "detect gene retrocopy insertion polymorphisms from short-read paired-end WGS"
	License     = "MIT"
	URL         = "https://github.com/adamewing/GRIPper2"
	DownloadURL = "https://github.com/adamewing/GRIPper2/archive/refs/tags/v0.1.0.tar.gz"
	Status      = "Beta"
)

// String returns "<name> <version>".
func String() string { return Name + " " + Version }

// Field is one metadata entry.
type Field struct {
	Key, Value string
}

// Metadata returns every metadata field, in a fixed order.
func Metadata() []Field {
	return []Field{
		{"name", Name},
		{"version", Version},
		{"author", Author},
		{"author_email", AuthorEmail},
		{"description", Description},
		{"license", License},
		{"url", URL},
		{"download_url", DownloadURL},
		{"status", Status},
	}
}
