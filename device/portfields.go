package device

import "fmt"

// portFieldName builds a two-digit-port register name, e.g. portFieldName("P", 7, "STATE") -> "P07_STATE".
func portFieldName(prefix string, p int, suffix string) string {
	return fmt.Sprintf("%s%02d_%s", prefix, p, suffix)
}
