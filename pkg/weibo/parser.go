package weibo

import (
	"encoding/json"
	"fmt"

	"weibocrawl/pkg/errors"
)

// decodeJSON unmarshals a raw payload, classifying failures as parse
// errors so callers can distinguish them from transport faults.
func decodeJSON(payload []byte, target interface{}) error {
	if err := json.Unmarshal(payload, target); err != nil {
		return errors.Wrap(errors.ErrorTypeParsing, 0, err, fmt.Sprintf("failed to parse JSON: %v", err))
	}
	return nil
}

// parseEnvelope decodes the getIndex/statuses wrapper and returns the
// inner data payload.
func parseEnvelope(payload []byte) (json.RawMessage, error) {
	var envelope apiEnvelope
	if err := decodeJSON(payload, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil, errors.New(errors.ErrorTypeNotFound, 0, "response carries no data")
	}
	return envelope.Data, nil
}

// parseIndexData decodes the data payload of a getIndex response.
func parseIndexData(payload []byte) (*indexData, error) {
	data, err := parseEnvelope(payload)
	if err != nil {
		return nil, err
	}
	var index indexData
	if err := decodeJSON(data, &index); err != nil {
		return nil, err
	}
	return &index, nil
}

// normalizeUser maps a wire user onto the domain model, applying the
// fallback chains the mobile API requires (legacy field names, region
// aliases, phone cover image).
func normalizeUser(raw *rawUser) *User {
	if raw == nil {
		return nil
	}

	user := &User{
		ID:             raw.ID.String(),
		ScreenName:     raw.ScreenName,
		Gender:         raw.Gender,
		IPLocation:     coalesce(raw.IPLocation),
		Location:       coalesce(raw.Location, raw.IPLocation, raw.RegionName),
		Description:    raw.Description,
		FollowersCount: int64(raw.FollowersCount),
		FollowingCount: int64(coalesceCount(raw.FollowingCount, raw.FollowCount, raw.FriendsCount)),
		PostsCount:     int64(coalesceCount(raw.PostsCount, raw.StatusesCount)),
		Verified:       raw.Verified,
		VerifiedReason: raw.VerifiedReason,
		AvatarURL:      coalesce(raw.AvatarURL, raw.ProfileImageURL),
		CoverImageURL:  coalesce(raw.CoverImageURL, raw.CoverImagePhone),
		Birthday:       coalesce(raw.Birthday, raw.BirthdayText),
		Education:      coalesce(raw.Education, raw.EducationBg),
		Company:        coalesce(raw.Company, raw.CompanyName),
	}

	for _, label := range raw.LabelDesc {
		if label.Name != "" {
			user.Labels = append(user.Labels, label.Name)
		}
	}

	return user
}

// normalizePost maps a wire post onto the domain model, picking the large
// image variant when present and extracting the video stream URL.
func normalizePost(raw *rawPost) *Post {
	if raw == nil {
		return nil
	}

	post := &Post{
		ID:             raw.ID.String(),
		Bid:            raw.Bid,
		Text:           raw.Text,
		CreatedAt:      raw.CreatedAt,
		Source:         raw.Source,
		RepostsCount:   int64(raw.RepostsCount),
		CommentsCount:  int64(raw.CommentsCount),
		AttitudesCount: int64(raw.AttitudesCount),
		IsLongText:     raw.IsLongText,
		User:           normalizeUser(raw.User),
	}

	for _, pic := range raw.Pics {
		if pic.Large != nil && pic.Large.URL != "" {
			post.PicURLs = append(post.PicURLs, pic.Large.URL)
		} else if pic.URL != "" {
			post.PicURLs = append(post.PicURLs, pic.URL)
		}
	}

	if raw.PageInfo != nil && raw.PageInfo.Type == "video" && raw.PageInfo.MediaInfo != nil {
		post.VideoURL = coalesce(raw.PageInfo.MediaInfo.StreamURLHD, raw.PageInfo.MediaInfo.StreamURL)
	}

	return post
}

// postsFromCards extracts posts from getIndex cards.
func postsFromCards(cards []rawCard) []*Post {
	var posts []*Post
	for _, card := range cards {
		if card.CardType != cardTypePost || card.Mblog == nil {
			continue
		}
		if post := normalizePost(card.Mblog); post != nil {
			posts = append(posts, post)
		}
	}
	return posts
}

// usersFromSearchCards extracts users from a user-search response, which
// nests type-10 user cards inside type-11 groups.
func usersFromSearchCards(cards []rawCard) []*User {
	var users []*User
	for _, card := range cards {
		if card.CardType != cardTypeUserGroup {
			continue
		}
		for _, group := range card.CardGroup {
			if group.CardType != cardTypeUser || group.User == nil {
				continue
			}
			if user := normalizeUser(group.User); user != nil {
				users = append(users, user)
			}
		}
	}
	return users
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func coalesceCount(values ...Count) Count {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
