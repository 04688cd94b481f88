package users

import (
	"context"
	"errors"

	"github.com/kroma-labs/relay/httpclient"
)

type User struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type Post struct {
	ID     int    `json:"id,omitempty"`
	UserID int    `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// PostFilter is sent as query parameters.
type PostFilter struct {
	UserID int `param:"userId"`
}

var specs = []httpclient.MethodSpec{
	{
		Name:    "GetUser",
		Line:    "GET /users/{id}",
		Headers: []string{"Accept: application/json"},
		Params:  []httpclient.Param{httpclient.Var("id")},
		Returns: httpclient.OptionalOf(httpclient.ShapeOf[User]()),
	},
	{
		Name:    "ListPosts",
		Line:    "GET /posts",
		Headers: []string{"Accept: application/json"},
		Params:  []httpclient.Param{httpclient.QueryMapParam()},
		Returns: httpclient.ShapeOf[[]Post](),
	},
	{
		Name:    "CreatePost",
		Line:    "POST /posts",
		Params:  []httpclient.Param{httpclient.BodyParam()},
		Returns: httpclient.ShapeOf[Post](),
	},
}

// Client calls the users API.
type Client struct {
	svc *httpclient.Service
}

// New builds a Client for target.
func New(b *httpclient.Builder, target httpclient.Target) (*Client, error) {
	svc, err := b.Build(target, specs...)
	if err != nil {
		return nil, err
	}
	return &Client{svc: svc}, nil
}

// GetUser returns the user, or false when it does not exist.
func (c *Client) GetUser(ctx context.Context, id int) (User, bool, error) {
	opt, err := httpclient.Call[httpclient.Optional](ctx, c.svc, "GetUser", id)
	if err != nil {
		return User{}, false, err
	}
	v, ok := opt.Get()
	if !ok {
		return User{}, false, nil
	}
	u, ok := v.(User)
	if !ok {
		return User{}, false, errors.New("unexpected user payload")
	}
	return u, true, nil
}

func (c *Client) ListPosts(ctx context.Context, filter PostFilter) ([]Post, error) {
	return httpclient.Call[[]Post](ctx, c.svc, "ListPosts", filter)
}

func (c *Client) CreatePost(ctx context.Context, p Post) (Post, error) {
	return httpclient.Call[Post](ctx, c.svc, "CreatePost", p)
}
