package weibo

import (
	"fmt"
	"net/url"
	"strconv"
)

const (
	// DefaultBaseURL is the Weibo mobile API host.
	DefaultBaseURL = "https://m.weibo.cn"

	// IndexEndpoint is the container endpoint behind most list queries.
	IndexEndpoint = "/api/container/getIndex"

	// StatusEndpoint returns a single post's detail.
	StatusEndpoint = "/statuses/show"

	// StatusAntiCrawlerBlock is the status Weibo answers with when its
	// anti-crawler layer throttles the caller.
	StatusAntiCrawlerBlock = 432

	// Container ID prefixes for getIndex queries.
	profileContainerPrefix = "100505"
	postsContainerPrefix   = "107603"
	userSearchContainer    = "100103type=3&q="
	postSearchContainer    = "100103type=1&q="
)

// ProfileRequest builds the getIndex request for a user's profile.
func ProfileRequest(baseURL, uid string) Request {
	params := url.Values{}
	params.Set("containerid", profileContainerPrefix+uid)
	return Request{URL: baseURL + IndexEndpoint, Params: params}
}

// PostsRequest builds the getIndex request for one page of a user's posts.
func PostsRequest(baseURL, uid string, page int) Request {
	params := url.Values{}
	params.Set("containerid", postsContainerPrefix+uid)
	params.Set("page", strconv.Itoa(page))
	return Request{URL: baseURL + IndexEndpoint, Params: params}
}

// StatusRequest builds the detail request for a single post.
func StatusRequest(baseURL, bid string) Request {
	params := url.Values{}
	params.Set("id", bid)
	return Request{URL: baseURL + StatusEndpoint, Params: params}
}

// UserSearchRequest builds the getIndex request for a user search page.
func UserSearchRequest(baseURL, query string, page, count int) Request {
	params := url.Values{}
	params.Set("containerid", userSearchContainer+query)
	params.Set("page", strconv.Itoa(page))
	if count > 0 {
		params.Set("count", strconv.Itoa(count))
	}
	return Request{URL: baseURL + IndexEndpoint, Params: params}
}

// PostSearchRequest builds the getIndex request for a post search page.
func PostSearchRequest(baseURL, query string, page int) Request {
	params := url.Values{}
	params.Set("containerid", postSearchContainer+query)
	params.Set("page", strconv.Itoa(page))
	return Request{URL: baseURL + IndexEndpoint, Params: params}
}

// ProfileContainerID returns the container id for a user's profile.
func ProfileContainerID(uid string) string {
	return profileContainerPrefix + uid
}

// PostsContainerID returns the container id for a user's post timeline.
func PostsContainerID(uid string) string {
	return postsContainerPrefix + uid
}

// ValidateUID checks that a uid is a plausible numeric Weibo user id.
func ValidateUID(uid string) error {
	if uid == "" {
		return fmt.Errorf("uid must be non-empty")
	}
	for _, r := range uid {
		if r < '0' || r > '9' {
			return fmt.Errorf("uid must be numeric, got %q", uid)
		}
	}
	return nil
}
