// claims локально читает claims-сегмент access-токена (JWT) без проверки подписи.
//
// Это подсказка о сроке жизни, а не граница доверия: реальную авторизацию
// выполняет сервер на каждом запросе. Пакет нужен, чтобы не отправлять
// заведомо просроченный токен и не делать лишний сетевой round trip.
package claims

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformed — токен не разбирается как header.claims.signature
// или claims-сегмент не является JSON-объектом с корректным exp.
var ErrMalformed = errors.New("malformed token")

// Парсер только декодирует сегменты; допускаем base64url и с паддингом, и без.
var parser = jwt.NewParser(jwt.WithPaddingAllowed())

// Parse декодирует claims-сегмент (средний) токена.
func Parse(token string) (jwt.MapClaims, error) {
	const op = "claims.Parse"

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformed)
	}

	raw, err := parser.DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrMalformed, err)
	}

	var mc jwt.MapClaims
	if err := json.Unmarshal(raw, &mc); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrMalformed, err)
	}

	// JSON null декодируется в nil-карту без ошибки.
	if mc == nil {
		return nil, fmt.Errorf("%s: %w: claims are null", op, ErrMalformed)
	}

	return mc, nil
}

// Границы exp для ExpiresAt: 0001-01-01T00:00:00Z и 9999-12-31T23:59:59Z.
const (
	minUnix = -62135596800
	maxUnix = 253402300799
)

// ExpiresAt возвращает момент истечения из claim exp (epoch seconds).
// ok == false — claim отсутствует.
func ExpiresAt(token string) (exp time.Time, ok bool, err error) {
	sec, ok, err := expSeconds(token)
	if err != nil || !ok {
		return time.Time{}, false, err
	}

	sec = math.Max(minUnix, math.Min(sec, maxUnix))

	whole := math.Floor(sec)
	return time.Unix(int64(whole), int64((sec-whole)*1e9)).UTC(), true, nil
}

// Expired сообщает, что exp строго меньше now. Токен без exp не считается просроченным.
// Сравнение идёт в секундах эпохи, поэтому exp = 0 всегда в прошлом.
func Expired(token string, now time.Time) (bool, error) {
	sec, ok, err := expSeconds(token)
	if err != nil {
		return false, err
	}

	if !ok {
		return false, nil
	}

	return sec < float64(now.UnixNano())/1e9, nil
}

// expSeconds читает exp как число без преобразования во время:
// GetExpirationTime из jwt считает exp = 0 отсутствующим.
func expSeconds(token string) (float64, bool, error) {
	const op = "claims.ExpiresAt"

	mc, err := Parse(token)
	if err != nil {
		return 0, false, err
	}

	v, ok := mc["exp"]
	if !ok {
		return 0, false, nil
	}

	switch exp := v.(type) {
	case float64:
		return exp, true, nil
	case json.Number:
		f, err := exp.Float64()
		if err != nil {
			return 0, false, fmt.Errorf("%s: %w: %w", op, ErrMalformed, err)
		}
		return f, true, nil
	default:
		return 0, false, fmt.Errorf("%s: %w: exp is %T", op, ErrMalformed, v)
	}
}
