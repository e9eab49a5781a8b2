// SPDX-License-Identifier: MPL-2.0

package registry

const (
	// SeverityWarning indicates a recoverable scan warning.
	SeverityWarning Severity = "warning"
	// SeverityError indicates a directory that could not be loaded.
	SeverityError Severity = "error"

	// CodeManifestMissing: the directory has no mod_info.json.
	CodeManifestMissing = "manifest-missing"
	// CodeManifestInvalid: mod_info.json failed to parse.
	CodeManifestInvalid = "manifest-invalid"
	// CodeVersionFileInvalid: the local version file is listed but unusable.
	CodeVersionFileInvalid = "version-file-invalid"
	// CodeUnreadable: the directory or a file in it could not be read.
	CodeUnreadable = "unreadable"
	// CodeStateInvalid: enabled_mods.json or .modkit.json could not be decoded.
	CodeStateInvalid = "state-invalid"
)

type (
	// Severity represents scan diagnostic severity.
	Severity string

	// Diagnostic is a structured scan problem returned to callers rather than
	// logged, so the CLI and the bridge can render it their own way.
	Diagnostic struct {
		// Severity is the diagnostic level (warning or error).
		Severity Severity
		// Code is a machine-readable identifier such as "manifest-invalid".
		Code string
		// Message is the human-readable description.
		Message string
		// Path is the file or directory the diagnostic is about.
		Path string
		// Cause is the underlying error, when there is one.
		Cause error
	}
)

func (d Diagnostic) String() string {
	s := string(d.Severity) + " [" + d.Code + "] "
	if d.Path != "" {
		s += d.Path + ": "
	}
	return s + d.Message
}
