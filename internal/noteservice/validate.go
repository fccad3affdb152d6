package noteservice

import "regexp"

var (
	// References end up inside \excref{...} and \externaldocument[...-].
	referencePattern = regexp.MustCompile(`^[^\s{}\[\],\\]+$`)
	// Filenames are slash-separated stems without extension.
	filenamePattern = regexp.MustCompile(`^[^\s{}\\.][^\s{}\\]*$`)
)
