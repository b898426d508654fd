package hook

import "github.com/samber/lo"

// Page identifies the storefront view being rendered.
type Page string

const (
	PageCart     Page = "cart"
	PageCheckout Page = "checkout"
	PageOther    Page = "other"
)

// ComponentCheckoutCouponForm is the host's default "enter a coupon code"
// toggle rendered above the checkout form.
const ComponentCheckoutCouponForm = "checkout_coupon_form"

// Request is the request-scoped context handed to every handler. It carries
// the facts the host platform knows about the current request and collects
// the directives handlers want the host to apply.
type Request struct {
	SessionID string
	Admin     bool
	Page      Page
	PageID    string
	OrderID   string

	styles  []string
	removed []string
}

// IsCartOrCheckout reports whether the request renders the cart or the
// checkout view.
func (r *Request) IsCartOrCheckout() bool {
	return r.Page == PageCart || r.Page == PageCheckout
}

// EmitStyle queues a style block for the host to print in the page head.
func (r *Request) EmitStyle(css string) {
	r.styles = append(r.styles, css)
}

// Styles returns the queued style blocks in emission order.
func (r *Request) Styles() []string {
	return r.styles
}

// RemoveComponent asks the host not to render the named UI component.
func (r *Request) RemoveComponent(name string) {
	if !lo.Contains(r.removed, name) {
		r.removed = append(r.removed, name)
	}
}

// RemovedComponents returns the components the host must not render.
func (r *Request) RemovedComponents() []string {
	return r.removed
}
