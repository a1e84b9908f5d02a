// Package cli parses the canlogconvert command line, merges it with the
// optional configuration file, runs the selected command and maps failures
// to process exit codes.
package cli
