package util

import "strconv"

func Itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
