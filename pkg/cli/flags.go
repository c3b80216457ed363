package cli

// Version is the tarjama release.
const Version = "0.1.0"

// Flags holds all command-line flag values
type Flags struct {
	// Global flags
	CfgFile   string
	StorePath string
	Backend   string
	LogLevel  string
	LogFormat string

	// serve
	Addr      string
	BodyLimit string

	// import
	Tags        string
	EnglishFile string
	ArabicFile  string
	SheetFile   string

	// export
	Format string
	Output string
}

// NewFlags creates a new Flags instance with default values
func NewFlags() *Flags {
	return &Flags{
		StorePath: "translations.json",
		Backend:   BackendFile,
		LogLevel:  "info",
		LogFormat: "json",
		Addr:      ":8080",
		BodyLimit: "32M",
	}
}
