package weibo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weibocrawl/pkg/errors"
)

const profilePayload = `{
	"ok": 1,
	"data": {
		"userInfo": {
			"id": 1669879400,
			"screen_name": "测试用户",
			"gender": "f",
			"follow_count": "498",
			"followers_count": "94.8万",
			"statuses_count": 2008,
			"profile_image_url": "https://tvax1.sinaimg.cn/avatar.jpg",
			"cover_image_phone": "https://wx1.sinaimg.cn/cover.jpg",
			"verified": true,
			"verified_reason": "知名博主",
			"description": "hello",
			"region_name": "IP属地:北京",
			"birthday_text": "1990-05-12",
			"education_background": "某大学",
			"company_name": "某公司",
			"label_desc": ["超话主持人", {"name": "视频博主"}, {"unexpected": true}]
		}
	}
}`

const timelinePayload = `{
	"ok": 1,
	"data": {
		"cards": [
			{"card_type": 2},
			{
				"card_type": 9,
				"mblog": {
					"id": 4884001234567890,
					"bid": "KzWv8pHga",
					"text": "short post",
					"created_at": "Mon May 12 10:00:00 +0800 2025",
					"source": "iPhone",
					"reposts_count": 10,
					"comments_count": "1.2万",
					"attitudes_count": 300,
					"isLongText": true,
					"pics": [
						{"url": "https://wx1.sinaimg.cn/orj360/a.jpg", "large": {"url": "https://wx1.sinaimg.cn/large/a.jpg"}},
						{"url": "https://wx1.sinaimg.cn/orj360/b.jpg"}
					]
				}
			},
			{
				"card_type": 9,
				"mblog": {
					"id": 4884009999999999,
					"bid": "KzXy1aBcd",
					"text": "video post",
					"page_info": {
						"type": "video",
						"media_info": {"stream_url": "https://f.video.weibocdn.com/sd.mp4", "stream_url_hd": "https://f.video.weibocdn.com/hd.mp4"}
					}
				}
			}
		]
	}
}`

const userSearchPayload = `{
	"ok": 1,
	"data": {
		"cards": [
			{
				"card_type": 11,
				"card_group": [
					{"card_type": 10, "user": {"id": 111, "screen_name": "alice"}},
					{"card_type": 10, "user": {"id": 222, "screen_name": "bob"}},
					{"card_type": 7}
				]
			},
			{"card_type": 9}
		]
	}
}`

func TestParseEnvelopeNullData(t *testing.T) {
	_, err := parseEnvelope([]byte(`{"ok": 0, "data": null, "msg": "not found"}`))
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	_, err = parseEnvelope([]byte(`{"ok": 0}`))
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestParseEnvelopeInvalidJSON(t *testing.T) {
	_, err := parseEnvelope([]byte(`<html>blocked</html>`))
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeParsing, errors.TypeOf(err))
}

func TestParseProfile(t *testing.T) {
	index, err := parseIndexData([]byte(profilePayload))
	require.NoError(t, err)
	require.NotNil(t, index.UserInfo)

	user := normalizeUser(index.UserInfo)
	assert.Equal(t, "1669879400", user.ID)
	assert.Equal(t, "测试用户", user.ScreenName)
	assert.Equal(t, "f", user.Gender)

	// Legacy fallback chains: follow_count for following, statuses_count
	// for posts, profile_image_url for avatar, region_name for location.
	assert.Equal(t, int64(498), user.FollowingCount)
	assert.Equal(t, int64(948000), user.FollowersCount)
	assert.Equal(t, int64(2008), user.PostsCount)
	assert.Equal(t, "https://tvax1.sinaimg.cn/avatar.jpg", user.AvatarURL)
	assert.Equal(t, "https://wx1.sinaimg.cn/cover.jpg", user.CoverImageURL)
	assert.Equal(t, "IP属地:北京", user.Location)

	assert.True(t, user.Verified)
	assert.Equal(t, "知名博主", user.VerifiedReason)
	assert.Equal(t, "1990-05-12", user.Birthday)
	assert.Equal(t, "某大学", user.Education)
	assert.Equal(t, "某公司", user.Company)
	assert.Equal(t, []string{"超话主持人", "视频博主"}, user.Labels)
}

func TestParseTimeline(t *testing.T) {
	index, err := parseIndexData([]byte(timelinePayload))
	require.NoError(t, err)

	posts := postsFromCards(index.Cards)
	require.Len(t, posts, 2)

	first := posts[0]
	assert.Equal(t, "4884001234567890", first.ID)
	assert.Equal(t, "KzWv8pHga", first.Bid)
	assert.Equal(t, "short post", first.Text)
	assert.True(t, first.IsLongText)
	assert.Equal(t, int64(12000), first.CommentsCount)

	// Large variant preferred, plain URL as fallback.
	assert.Equal(t, []string{
		"https://wx1.sinaimg.cn/large/a.jpg",
		"https://wx1.sinaimg.cn/orj360/b.jpg",
	}, first.PicURLs)

	second := posts[1]
	assert.Empty(t, second.PicURLs)
	assert.Equal(t, "https://f.video.weibocdn.com/hd.mp4", second.VideoURL)
}

func TestParseUserSearch(t *testing.T) {
	index, err := parseIndexData([]byte(userSearchPayload))
	require.NoError(t, err)

	users := usersFromSearchCards(index.Cards)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].ScreenName)
	assert.Equal(t, "bob", users[1].ScreenName)
}

func TestNormalizeNil(t *testing.T) {
	assert.Nil(t, normalizeUser(nil))
	assert.Nil(t, normalizePost(nil))
}

func TestCoalesce(t *testing.T) {
	assert.Equal(t, "a", coalesce("", "a", "b"))
	assert.Equal(t, "", coalesce("", ""))
	assert.Equal(t, Count(5), coalesceCount(0, 5, 9))
	assert.Equal(t, Count(0), coalesceCount(0, 0))
}
