package versioning

// Embedded by --ldflags at build time.
// Versioning follows the SemVer guidelines
var (
	Version   string
	Commit    string
	BuildTime string
)
