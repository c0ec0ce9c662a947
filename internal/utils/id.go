package utils

import (
	"math/rand/v2"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const lowerAlphanumeric = "abcdefghijklmnopqrstuvwxyz0123456789"

func GenerateNanoID(size int) string {
	id, err := gonanoid.Generate(lowerAlphanumeric, size)
	if err != nil {
		panic(err)
	}
	return id
}

func GenerateNanoIDWithPrefix(prefix string, size int) string {
	return prefix + "_" + GenerateNanoID(size)
}

// RandomElement picks one entry of values, "" when empty.
func RandomElement(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[rand.IntN(len(values))]
}

func Now() time.Time {
	return time.Now().UTC()
}

// RandomAddress returns nanoid(8)@<one of domains>, "" when no domain is configured.
func RandomAddress(domains []string) string {
	domain := NormalizeAddress(RandomElement(domains))
	if domain == "" {
		return ""
	}
	return GenerateNanoID(8) + "@" + domain
}
