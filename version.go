package clogger

// libName and libVersion back LibVersion (§6 "lib_version").
const (
	libName    = "clogger"
	libVersion = "1.0.0"
)

// LibVersion returns the library's identity and version string.
func LibVersion() (name, version string) {
	return libName, libVersion
}
