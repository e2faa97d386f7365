package registry

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/fircargo/cargotrack/internal/models"
)

// ParseCodes разбирает вставленный текст или содержимое .txt файла в список
// кодов: любые пробельные разделители, верхний регистр, дубли отбрасываются
// (первое вхождение побеждает).
func ParseCodes(text string) []string {
	codes := lo.Map(strings.Fields(text), func(s string, _ int) string {
		return strings.ToUpper(s)
	})
	return lo.Uniq(codes)
}

// ParseOwnedEntries разбирает текст построчно в формате "КОД [FS0042]":
// первый токен строки — код, второй, необязательный — внутренний ID
// получателя. Так персонал оформляет поток "прибыл в пункт выдачи".
func ParseOwnedEntries(text string) []models.BulkEntry {
	entries := make([]models.BulkEntry, 0)
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		e := models.BulkEntry{Code: strings.ToUpper(fields[0])}
		if len(fields) > 1 {
			if id, err := ParseInternalID(fields[1]); err == nil {
				e.InternalID = &id
			}
		}
		entries = append(entries, e)
	}
	return lo.UniqBy(entries, func(e models.BulkEntry) string { return e.Code })
}

// ParseInternalID принимает "FS0042", "fs42" или просто "42".
func ParseInternalID(s string) (int64, error) {
	s = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "FS")
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Errorf("bad internal id %q", s)
	}
	return id, nil
}
