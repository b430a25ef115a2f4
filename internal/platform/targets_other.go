//go:build !linux

package platform

// externalTargetReader is Linux-only; other platforms capture text and images
func externalTargetReader() TargetReader {
	return nil
}

// externalTargetWriter is Linux-only; file lists are written as plain text
func externalTargetWriter() TargetWriter {
	return nil
}
