package weibo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Count decodes Weibo counters, which arrive either as plain numbers or as
// abbreviated strings like "94.8万" and "1.2亿".
type Count int64

// UnmarshalJSON implements json.Unmarshaler.
func (c *Count) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := parseAbbreviatedCount(s)
		if err != nil {
			return err
		}
		*c = Count(n)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*c = Count(int64(f))
	return nil
}

func parseAbbreviatedCount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	multiplier := float64(1)
	switch {
	case strings.HasSuffix(s, "万"):
		multiplier = 1e4
		s = strings.TrimSuffix(s, "万")
	case strings.HasSuffix(s, "亿"):
		multiplier = 1e8
		s = strings.TrimSuffix(s, "亿")
	}

	f, err := strconv.ParseFloat(strings.TrimSuffix(s, "+"), 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable count %q: %w", s, err)
	}
	// Round: "94.8万" must come out as 948000, not one short of it.
	return int64(math.Round(f * multiplier)), nil
}

// User is a Weibo user profile.
type User struct {
	ID             string   `json:"id"`
	ScreenName     string   `json:"screen_name"`
	Gender         string   `json:"gender"`
	Location       string   `json:"location"`
	IPLocation     string   `json:"ip_location"`
	Description    string   `json:"description"`
	FollowersCount int64    `json:"followers_count"`
	FollowingCount int64    `json:"following_count"`
	PostsCount     int64    `json:"posts_count"`
	Verified       bool     `json:"verified"`
	VerifiedReason string   `json:"verified_reason"`
	AvatarURL      string   `json:"avatar_url"`
	CoverImageURL  string   `json:"cover_image_url"`
	Birthday       string   `json:"birthday"`
	Education      string   `json:"education"`
	Company        string   `json:"company"`
	Labels         []string `json:"labels,omitempty"`
}

// Post is a single Weibo post.
type Post struct {
	ID             string   `json:"id"`
	Bid            string   `json:"bid"`
	Text           string   `json:"text"`
	CreatedAt      string   `json:"created_at"`
	Source         string   `json:"source"`
	RepostsCount   int64    `json:"reposts_count"`
	CommentsCount  int64    `json:"comments_count"`
	AttitudesCount int64    `json:"attitudes_count"`
	IsLongText     bool     `json:"is_long_text"`
	PicURLs        []string `json:"pic_urls,omitempty"`
	VideoURL       string   `json:"video_url,omitempty"`
	User           *User    `json:"user,omitempty"`
}

// HasImages reports whether the post carries downloadable images.
func (p *Post) HasImages() bool {
	return len(p.PicURLs) > 0
}

// Wire-format structures for the m.weibo.cn API.

// apiEnvelope is the getIndex/statuses response wrapper.
type apiEnvelope struct {
	OK   int             `json:"ok"`
	Data json.RawMessage `json:"data"`
	Msg  string          `json:"msg"`
}

// indexData is the payload of a getIndex response.
type indexData struct {
	UserInfo *rawUser  `json:"userInfo"`
	Cards    []rawCard `json:"cards"`
}

// rawCard is one getIndex card. Card type 9 carries a post; search
// responses use type 11 groups wrapping type 10 user cards.
type rawCard struct {
	CardType  int       `json:"card_type"`
	Mblog     *rawPost  `json:"mblog"`
	CardGroup []rawCard `json:"card_group"`
	User      *rawUser  `json:"user"`
}

const (
	cardTypePost      = 9
	cardTypeUser      = 10
	cardTypeUserGroup = 11
)

// rawUser mirrors the wire shape of a user, including the legacy field
// names newer responses still fall back to.
type rawUser struct {
	ID              json.Number `json:"id"`
	ScreenName      string      `json:"screen_name"`
	Gender          string      `json:"gender"`
	Location        string      `json:"location"`
	RegionName      string      `json:"region_name"`
	IPLocation      string      `json:"ip_location"`
	Description     string      `json:"description"`
	FollowersCount  Count       `json:"followers_count"`
	FollowingCount  Count       `json:"following_count"`
	FollowCount     Count       `json:"follow_count"`
	FriendsCount    Count       `json:"friends_count"`
	PostsCount      Count       `json:"posts_count"`
	StatusesCount   Count       `json:"statuses_count"`
	Verified        bool        `json:"verified"`
	VerifiedReason  string      `json:"verified_reason"`
	AvatarURL       string      `json:"avatar_url"`
	ProfileImageURL string      `json:"profile_image_url"`
	CoverImageURL   string      `json:"cover_image_url"`
	CoverImagePhone string      `json:"cover_image_phone"`
	Birthday        string      `json:"birthday"`
	BirthdayText    string      `json:"birthday_text"`
	Education       string      `json:"education"`
	EducationBg     string      `json:"education_background"`
	Company         string      `json:"company"`
	CompanyName     string      `json:"company_name"`
	LabelDesc       []rawLabel  `json:"label_desc"`
}

// rawLabel decodes label_desc entries, which mix bare strings and
// {"name": ...} objects.
type rawLabel struct {
	Name string
}

func (l *rawLabel) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &l.Name)
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		// Unknown label shapes are dropped, not fatal.
		l.Name = ""
		return nil
	}
	l.Name = obj.Name
	return nil
}

// rawPost mirrors the wire shape of an mblog entry.
type rawPost struct {
	ID             json.Number  `json:"id"`
	Bid            string       `json:"bid"`
	Text           string       `json:"text"`
	CreatedAt      string       `json:"created_at"`
	Source         string       `json:"source"`
	RepostsCount   Count        `json:"reposts_count"`
	CommentsCount  Count        `json:"comments_count"`
	AttitudesCount Count        `json:"attitudes_count"`
	IsLongText     bool         `json:"isLongText"`
	Pics           []rawPic     `json:"pics"`
	PageInfo       *rawPageInfo `json:"page_info"`
	User           *rawUser     `json:"user"`
}

type rawPic struct {
	URL   string `json:"url"`
	Large *struct {
		URL string `json:"url"`
	} `json:"large"`
}

type rawPageInfo struct {
	Type      string `json:"type"`
	MediaInfo *struct {
		StreamURL   string `json:"stream_url"`
		StreamURLHD string `json:"stream_url_hd"`
	} `json:"media_info"`
}
