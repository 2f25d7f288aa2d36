package util

import (
	"crypto/rand"
	"math/big"

	"github.com/pkg/errors"
)

const base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// urlIDBytes is the entropy behind a public paste token. 16 bytes keeps the
// token unguessable even if the full paste table size were known.
const urlIDBytes = 16

// GenURLID mints a random base62 token and re-rolls on the (vanishingly rare)
// collision reported by exists.
func GenURLID(exists func(string) (bool, error)) (string, error) {
	for retry := 0; retry < 5; retry++ {
		buf := make([]byte, urlIDBytes)
		if _, err := rand.Read(buf); err != nil {
			return "", errors.Wrap(err, "rand fail")
		}
		num := new(big.Int).SetBytes(buf)
		id := toBase62(num)
		exist, err := exists(id)
		if err != nil {
			return "", err
		}
		if !exist {
			return id, nil
		}
	}
	return "", errors.New("id collision after 5 retries")
}

func toBase62(num *big.Int) string {
	if num.Sign() == 0 {
		return string(base62Chars[0])
	}
	base := big.NewInt(62)
	result := make([]byte, 0, 22)
	zero := big.NewInt(0)
	temp := new(big.Int).Set(num)
	for temp.Cmp(zero) > 0 {
		mod := new(big.Int)
		temp.DivMod(temp, base, mod)
		result = append(result, base62Chars[mod.Int64()])
	}
	for len(result) < 22 {
		result = append(result, base62Chars[0])
	}
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return string(result)
}
