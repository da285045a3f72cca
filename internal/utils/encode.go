package utils

import (
	"encoding/base64"
	"strconv"
)

// StrEncode obscures a value placed in token claims. It is not encryption;
// the signature on the surrounding token is what makes it trustworthy.
func StrEncode(value string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(value))
}

func StrDecode(value string) (string, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func EncodeID(id uint) string {
	return StrEncode(strconv.FormatUint(uint64(id), 10))
}

func DecodeID(value string) (uint, error) {
	raw, err := StrDecode(value)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
