package weibo

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FilterCriteria narrows a user list. Zero values match everything.
type FilterCriteria struct {
	// Gender accepts m/f in several spellings, including 男/女.
	Gender string
	// Location, Education, Company match as whitespace-insensitive,
	// case-folded substrings.
	Location  string
	Education string
	Company   string
	// Birthday matches as a substring of the profile birthday text.
	Birthday string
	// MinAge/MaxAge bound the age derived from the birthday. Zero
	// disables the bound.
	MinAge int
	MaxAge int
}

var (
	whitespaceRE = regexp.MustCompile(`\s+`)
	yearRE       = regexp.MustCompile(`(19|20)\d{2}`)
	numberRE     = regexp.MustCompile(`\d{1,2}`)
)

// FilterUsers returns the users matching every set criterion.
func FilterUsers(users []*User, criteria FilterCriteria) ([]*User, error) {
	if criteria.MinAge < 0 || criteria.MaxAge < 0 {
		return nil, fmt.Errorf("age bounds must be non-negative")
	}
	if criteria.MinAge > 0 && criteria.MaxAge > 0 && criteria.MinAge > criteria.MaxAge {
		return nil, fmt.Errorf("min age %d exceeds max age %d", criteria.MinAge, criteria.MaxAge)
	}

	var filtered []*User
	for _, user := range users {
		if user == nil {
			continue
		}
		if !matchGender(user.Gender, criteria.Gender) {
			continue
		}
		if !matchText(user.Location, criteria.Location) {
			continue
		}
		if !matchText(user.Education, criteria.Education) {
			continue
		}
		if !matchText(user.Company, criteria.Company) {
			continue
		}
		if !matchBirthday(user.Birthday, criteria, time.Now()) {
			continue
		}
		filtered = append(filtered, user)
	}
	return filtered, nil
}

func normalizeText(value string) string {
	return strings.ToLower(whitespaceRE.ReplaceAllString(value, ""))
}

func matchText(value, needle string) bool {
	if needle == "" {
		return true
	}
	if value == "" {
		return false
	}
	return strings.Contains(normalizeText(value), normalizeText(needle))
}

func normalizeGender(value string) string {
	switch normalizeText(value) {
	case "m", "male", "man", "男":
		return "m"
	case "f", "female", "woman", "女":
		return "f"
	default:
		return normalizeText(value)
	}
}

func matchGender(value, expected string) bool {
	if expected == "" {
		return true
	}
	return normalizeGender(value) == normalizeGender(expected)
}

// parseBirthdayParts pulls year/month/day out of free-form birthday text
// such as "1995-03-12", "03-12 双鱼座" or "1990年5月".
func parseBirthdayParts(birthday string) (year, month, day int) {
	text := strings.TrimSpace(birthday)
	if text == "" {
		return 0, 0, 0
	}

	var numbers []string
	if loc := yearRE.FindStringIndex(text); loc != nil {
		year, _ = strconv.Atoi(text[loc[0]:loc[1]])
		numbers = numberRE.FindAllString(text[loc[1]:], -1)
	} else {
		numbers = numberRE.FindAllString(text, -1)
	}

	if len(numbers) > 0 {
		month, _ = strconv.Atoi(numbers[0])
	}
	if len(numbers) > 1 {
		day, _ = strconv.Atoi(numbers[1])
	}

	if month < 1 || month > 12 {
		month = 0
	}
	if day < 1 || day > 31 {
		day = 0
	}
	return year, month, day
}

func ageAt(year, month, day int, now time.Time) int {
	age := now.Year() - year
	if month > 0 && day > 0 {
		if int(now.Month()) < month || (int(now.Month()) == month && now.Day() < day) {
			age--
		}
	}
	return age
}

func matchBirthday(value string, criteria FilterCriteria, now time.Time) bool {
	if criteria.Birthday != "" {
		if value == "" {
			return false
		}
		if !strings.Contains(normalizeText(value), normalizeText(criteria.Birthday)) {
			return false
		}
	}

	if criteria.MinAge > 0 || criteria.MaxAge > 0 {
		if value == "" {
			return false
		}
		year, month, day := parseBirthdayParts(value)
		if year == 0 {
			return false
		}
		age := ageAt(year, month, day, now)
		if criteria.MinAge > 0 && age < criteria.MinAge {
			return false
		}
		if criteria.MaxAge > 0 && age > criteria.MaxAge {
			return false
		}
	}

	return true
}
