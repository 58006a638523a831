// Package utils provides small helpers shared across patu.
//
//   - Path utilities: resolve relative paths and split search path lists
//   - File utilities: close handles and log the failure
//
// Example:
//
//	for _, dir := range utils.SearchPath(os.Getenv("CNI_PATH")) {
//	    ...
//	}
package utils
