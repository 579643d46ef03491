package ports

import (
	"context"

	"remote-browser-env/internal/entity"
)

// BrowserSession is the single live remote browser session held by a running
// instance. It is passed by reference into tool, setup and evaluate code;
// nothing else owns browser state.
type BrowserSession interface {
	Acquire(ctx context.Context) error
	Reset(ctx context.Context) error
	Close(ctx context.Context) error
	Ready() bool

	CurrentURL() string
	Title(ctx context.Context) (string, error)
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	ClickAt(ctx context.Context, x, y float64) error
	Fill(ctx context.Context, selector, value string) error
	TypeText(ctx context.Context, text string, enterAfter bool) error
	Press(ctx context.Context, keys string) error
	Scroll(ctx context.Context, deltaX, deltaY int) error
	Screenshot(ctx context.Context) ([]byte, error)
	Content(ctx context.Context) (string, error)
	SetContent(ctx context.Context, html string) error
	InputValue(ctx context.Context, selector string) (string, error)
	ElementExists(ctx context.Context, selector string) (bool, error)
	WaitForSelector(ctx context.Context, selector string, timeoutMs float64) error
	Evaluate(ctx context.Context, script string) (any, error)
	GetElements(ctx context.Context) ([]entity.Element, error)
	PageState(ctx context.Context) (*entity.PageState, error)

	AddCookies(ctx context.Context, cookies []entity.Cookie) error
	ClearCookies(ctx context.Context) error
	Cookies(ctx context.Context) ([]entity.Cookie, error)

	// GridText selects the whole sheet grid and returns the copied
	// tab-separated text. Only meaningful on a spreadsheet page.
	GridText(ctx context.Context) (string, error)
	ActivateSheetTab(ctx context.Context, name string) (bool, error)

	History() *entity.History
	Telemetry() entity.Telemetry
}

// SessionLauncher obtains a connected remote browser endpoint from a cloud
// vendor.
type SessionLauncher interface {
	Name() string
	Launch(ctx context.Context) (*RemoteSession, error)
	Terminate(ctx context.Context) error
}

type RemoteSession struct {
	CDPURL      string
	InstanceID  string
	LiveViewURL string
}
