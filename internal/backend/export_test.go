package backend

import "testing"

// NewFakeAuthClient returns a client talking to an in-process auth server
// that already knows one confirmed account.
func NewFakeAuthClient(t *testing.T, email, password string) *Client {
	t.Helper()
	fake := newFakeAuth()
	fake.users[email] = fakeUser{ID: "7b1e4f20-0000-4000-8000-0000000000bb", Email: email, Password: password}
	return newTestClient(t, fake, NewMemoryStore())
}
