// SPDX-License-Identifier: MPL-2.0

package serverbase

// Option configures a Base.
type Option func(*Base)

// WithErrorBuffer sets how many asynchronous errors are buffered before
// further ones are dropped. The default is 1.
func WithErrorBuffer(size int) Option {
	return func(b *Base) {
		b.errCh = make(chan error, max(size, 1))
	}
}
