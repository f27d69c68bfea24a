package weibo

import (
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"weibocrawl/internal/downloader"
	"weibocrawl/pkg/config"
	"weibocrawl/pkg/errors"
	"weibocrawl/pkg/logger"
	"weibocrawl/pkg/proxy"
	"weibocrawl/pkg/ratelimit"
	"weibocrawl/pkg/storage"
)

// Client is the Weibo crawler client. It owns the proxy pool and the
// request executor and exposes the endpoint operations on top of them.
type Client struct {
	cfg      *config.Config
	executor *Executor
	pool     *proxy.Pool
	logger   logger.Logger
}

// NewClient creates a Weibo client from configuration. It does not touch
// the network; call WarmUp before crawling to establish a session.
func NewClient(cfg *config.Config, log logger.Logger) (*Client, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = logger.GetLogger()
	}

	poolCfg := proxy.Config{
		PoolSize:   cfg.Proxy.PoolSize,
		DynamicTTL: cfg.Proxy.DynamicTTL,
		Strategy:   proxy.Strategy(cfg.Proxy.FetchStrategy),
	}
	if cfg.Proxy.APIURL != "" {
		poolCfg.Supply = proxy.NewHTTPSupply(cfg.Proxy.APIURL)
	}
	pool := proxy.New(poolCfg, log)

	for _, static := range cfg.Proxy.Static {
		if err := pool.AddProxy(static.URL, static.TTL); err != nil {
			return nil, fmt.Errorf("invalid static proxy %q: %w", static.URL, err)
		}
	}

	executor := NewExecutor(cfg.Request, pool, log)
	executor.SetHeaders(map[string]string{
		"User-Agent":       cfg.Weibo.UserAgent,
		"Referer":          cfg.Weibo.BaseURL + "/",
		"Accept":           "application/json, text/plain, */*",
		"X-Requested-With": "XMLHttpRequest",
	})
	if cfg.Weibo.Cookie != "" {
		executor.SetHeader("Cookie", cfg.Weibo.Cookie)
	}

	if cfg.Proxy.APIURL != "" {
		log.InfoWithFields("proxy pool enabled", map[string]interface{}{
			"api_url":  cfg.Proxy.APIURL,
			"capacity": cfg.Proxy.PoolSize,
			"ttl":      cfg.Proxy.DynamicTTL.String(),
			"strategy": cfg.Proxy.FetchStrategy,
		})
	}

	return &Client{
		cfg:      cfg,
		executor: executor,
		pool:     pool,
		logger:   log,
	}, nil
}

// Executor exposes the underlying request executor.
func (c *Client) Executor() *Executor {
	return c.executor
}

// SetCookie replaces the session cookie header.
func (c *Client) SetCookie(cookie string) {
	c.executor.SetHeader("Cookie", cookie)
}

// WarmUp initializes the session by touching the base URL, then pausing
// inside the warm-up window. Failures are logged, not fatal.
func (c *Client) WarmUp() {
	c.logger.Debug("initializing session")

	req, err := http.NewRequest(http.MethodGet, c.cfg.Weibo.BaseURL+"/", nil)
	if err == nil {
		for key, value := range c.executor.headers {
			req.Header.Set(key, value)
		}
		resp, err := c.executor.client.Do(req)
		if err != nil {
			c.logger.WithError(err).Warn("session initialization failed")
		} else {
			resp.Body.Close()
		}
	}

	c.executor.sleepWindow(c.cfg.Pacing.SessionWarmup)
}

// AddProxy inserts a static proxy into the pool. TTL 0 never expires.
func (c *Client) AddProxy(address string, ttl time.Duration) error {
	if err := c.pool.AddProxy(address, ttl); err != nil {
		return err
	}
	ttlStr := "never expires"
	if ttl > 0 {
		ttlStr = ttl.String()
	}
	c.logger.InfoWithFields("added proxy to pool", map[string]interface{}{
		"address": address,
		"ttl":     ttlStr,
	})
	return nil
}

// ProxyPoolSize returns the count of live proxies in the pool.
func (c *Client) ProxyPoolSize() int {
	return c.pool.Size()
}

// ClearProxyPool removes all pooled proxies.
func (c *Client) ClearProxyPool() {
	c.pool.Clear()
	c.logger.Info("proxy pool cleared")
}

// GetUserByUID fetches a user profile. Single-item fetch: no pacing.
func (c *Client) GetUserByUID(uid string) (*User, error) {
	if err := ValidateUID(uid); err != nil {
		return nil, errors.New(errors.ErrorTypeUnknown, 0, err.Error())
	}

	payload, err := c.executor.Execute(ProfileRequest(c.cfg.Weibo.BaseURL, uid), c.executor.DefaultOptions())
	if err != nil {
		return nil, err
	}

	index, err := parseIndexData(payload)
	if err != nil {
		return nil, err
	}
	if index.UserInfo == nil {
		return nil, errors.New(errors.ErrorTypeNotFound, 0, fmt.Sprintf("user %s not found", uid))
	}

	user := normalizeUser(index.UserInfo)
	c.logger.InfoWithFields("fetched user", map[string]interface{}{
		"uid":         uid,
		"screen_name": user.ScreenName,
	})
	return user, nil
}

// GetUserPosts fetches one page of a user's post timeline. List fetches
// are paced before the request goes out. With expand set, long-text posts
// are completed through the post-detail endpoint.
func (c *Client) GetUserPosts(uid string, page int, expand bool) ([]*Post, error) {
	if err := ValidateUID(uid); err != nil {
		return nil, errors.New(errors.ErrorTypeUnknown, 0, err.Error())
	}
	if page < 1 {
		page = 1
	}

	c.executor.sleepWindow(c.cfg.Pacing.ListFetch)

	payload, err := c.executor.Execute(PostsRequest(c.cfg.Weibo.BaseURL, uid, page), c.executor.DefaultOptions())
	if err != nil {
		return nil, err
	}

	index, err := parseIndexData(payload)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	posts := postsFromCards(index.Cards)
	if expand {
		c.expandLongPosts(posts)
	}

	c.logger.InfoWithFields("fetched posts", map[string]interface{}{
		"uid":   uid,
		"page":  page,
		"count": len(posts),
	})
	return posts, nil
}

// expandLongPosts replaces truncated long-text posts with their full
// detail. Expansion failures degrade to the truncated text.
func (c *Client) expandLongPosts(posts []*Post) {
	for _, post := range posts {
		if !post.IsLongText || post.Bid == "" {
			continue
		}
		full, err := c.GetPostByBid(post.Bid)
		if err != nil {
			c.logger.WarnWithFields("failed to expand long post", map[string]interface{}{
				"bid":   post.Bid,
				"error": err.Error(),
			})
			continue
		}
		post.Text = full.Text
		post.PicURLs = full.PicURLs
		post.VideoURL = full.VideoURL
	}
}

// GetPostByBid fetches a single post's detail. No pacing.
func (c *Client) GetPostByBid(bid string) (*Post, error) {
	payload, err := c.executor.Execute(StatusRequest(c.cfg.Weibo.BaseURL, bid), c.executor.DefaultOptions())
	if err != nil {
		return nil, err
	}

	data, err := parseEnvelope(payload)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.New(errors.ErrorTypeNotFound, 0, fmt.Sprintf("post %s not found", bid))
		}
		return nil, err
	}

	var raw rawPost
	if err := decodeJSON(data, &raw); err != nil {
		return nil, err
	}
	post := normalizePost(&raw)
	if post == nil || post.ID == "" {
		return nil, errors.New(errors.ErrorTypeParsing, 0, fmt.Sprintf("failed to parse post %s", bid))
	}
	return post, nil
}

// SearchUsers searches for users matching the query.
func (c *Client) SearchUsers(query string, page, count int) ([]*User, error) {
	if page < 1 {
		page = 1
	}

	c.executor.sleepWindow(c.cfg.Pacing.ListFetch)

	payload, err := c.executor.Execute(UserSearchRequest(c.cfg.Weibo.BaseURL, query, page, count), c.executor.DefaultOptions())
	if err != nil {
		return nil, err
	}

	index, err := parseIndexData(payload)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	users := usersFromSearchCards(index.Cards)
	c.logger.InfoWithFields("user search complete", map[string]interface{}{
		"query": query,
		"found": len(users),
	})
	return users, nil
}

// SearchPosts searches for posts matching the query.
func (c *Client) SearchPosts(query string, page int) ([]*Post, error) {
	if page < 1 {
		page = 1
	}

	c.executor.sleepWindow(c.cfg.Pacing.ListFetch)

	payload, err := c.executor.Execute(PostSearchRequest(c.cfg.Weibo.BaseURL, query, page), c.executor.DefaultOptions())
	if err != nil {
		return nil, err
	}

	index, err := parseIndexData(payload)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	posts := postsFromCards(index.Cards)
	c.logger.InfoWithFields("post search complete", map[string]interface{}{
		"query": query,
		"found": len(posts),
	})
	return posts, nil
}

// FetchImage downloads one binary asset. Image CDNs sit outside the
// anti-crawler layer, so the call bypasses the proxy pool and uses the
// download timeout.
func (c *Client) FetchImage(imageURL string) ([]byte, error) {
	opts := Options{
		UseProxy:   false,
		MaxRetries: c.cfg.Request.MaxRetries,
		Timeout:    c.cfg.Download.Timeout,
	}
	return c.executor.Execute(Request{URL: imageURL}, opts)
}

// DownloadPostImages downloads all images of one post into dir and
// returns a url -> local path map.
func (c *Client) DownloadPostImages(post *Post, dir string) (map[string]string, error) {
	if !post.HasImages() {
		c.logger.InfoWithFields("post has no images to download", map[string]interface{}{
			"post_id": post.ID,
		})
		return map[string]string{}, nil
	}

	results, err := c.downloadImages([]*Post{post}, dir, "")
	if err != nil {
		return nil, err
	}
	return results[post.ID], nil
}

// DownloadPostsImages downloads images from multiple posts, returning a
// post id -> (url -> local path) map.
func (c *Client) DownloadPostsImages(posts []*Post, dir, subdir string) (map[string]map[string]string, error) {
	var withImages []*Post
	for _, post := range posts {
		if post.HasImages() {
			withImages = append(withImages, post)
		}
	}
	if len(withImages) == 0 {
		c.logger.Info("no posts with images found")
		return map[string]map[string]string{}, nil
	}

	c.logger.InfoWithFields("downloading post images", map[string]interface{}{
		"posts_with_images": len(withImages),
		"posts_total":       len(posts),
	})
	return c.downloadImages(withImages, dir, subdir)
}

// DownloadUserPostsImages fetches up to pages timeline pages for a user
// and downloads every image found, pacing between page fetches.
func (c *Client) DownloadUserPostsImages(uid string, pages int, dir string, expand bool) (map[string]map[string]string, error) {
	if pages < 1 {
		pages = 1
	}

	var allPosts []*Post
	for page := 1; page <= pages; page++ {
		posts, err := c.GetUserPosts(uid, page, expand)
		if err != nil {
			return nil, err
		}
		if len(posts) == 0 {
			break
		}
		allPosts = append(allPosts, posts...)

		if page < pages {
			c.executor.sleepWindow(c.cfg.Pacing.PageInterval)
		}
	}

	return c.DownloadPostsImages(allPosts, dir, "user_"+uid)
}

// downloadImages runs the download worker pool over the posts' images.
func (c *Client) downloadImages(posts []*Post, dir, subdir string) (map[string]map[string]string, error) {
	if dir == "" {
		dir = c.cfg.Download.Directory
	}
	if subdir != "" {
		dir = dir + "/" + subdir
	}

	store, err := storage.NewManager(dir, c.cfg.Download.OverwriteExisting)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare download directory: %w", err)
	}

	var jobs []downloader.Job
	for _, post := range posts {
		for i, picURL := range post.PicURLs {
			jobs = append(jobs, downloader.Job{
				URL:      picURL,
				PostID:   post.ID,
				Filename: imageFilename(post.ID, i, picURL),
			})
		}
	}

	var limiter ratelimit.Limiter
	if rpm := c.cfg.Download.RequestsPerMinute; rpm > 0 {
		limiter = ratelimit.NewTokenBucket(rpm, time.Minute)
	}

	pool := downloader.NewPool(downloader.PoolConfig{
		Workers:       c.cfg.Download.ConcurrentDownloads,
		AssetInterval: c.cfg.Download.AssetInterval,
	}, c, store, limiter, c.logger)

	results := pool.Run(jobs)

	downloaded := make(map[string]map[string]string, len(posts))
	var failures int
	for _, result := range results {
		byURL, ok := downloaded[result.Job.PostID]
		if !ok {
			byURL = make(map[string]string)
			downloaded[result.Job.PostID] = byURL
		}
		if result.Err != nil {
			failures++
			byURL[result.Job.URL] = ""
			continue
		}
		byURL[result.Job.URL] = result.Path
	}

	if c.cfg.Download.SaveMetadata {
		for _, post := range posts {
			if err := store.SaveMetadata(post.ID+".json", post); err != nil {
				c.logger.WarnWithFields("failed to save post metadata", map[string]interface{}{
					"post_id": post.ID,
					"error":   err.Error(),
				})
			}
		}
	}

	c.logger.InfoWithFields("image download finished", map[string]interface{}{
		"jobs":     len(jobs),
		"failures": failures,
		"dir":      dir,
	})
	return downloaded, nil
}

// imageFilename derives a stable local name from the post and image URL.
func imageFilename(postID string, index int, imageURL string) string {
	ext := path.Ext(imageURL)
	if idx := strings.IndexAny(ext, "?#"); idx >= 0 {
		ext = ext[:idx]
	}
	if ext == "" || len(ext) > 5 {
		ext = ".jpg"
	}
	return fmt.Sprintf("%s_%02d%s", postID, index+1, ext)
}
