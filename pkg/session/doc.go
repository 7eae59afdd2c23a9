// Package session runs EPP commands one at a time over any transport.
//
// A Transport allows a single command in flight and leaves serialization to
// the caller. Session is that caller: Execute holds a lock across the
// Write/Read pair so concurrent goroutines never interleave commands.
//
//	t := transport.NewStreamTransport(endpoint)
//	s := session.New(t, session.WithCommandTimeout(30*time.Second))
//	defer s.Close()
//
//	if err := s.Open(ctx, transport.SecurityOptions{}); err != nil {
//	    return err
//	}
//	greeting, err := s.ReadGreeting(ctx)
//	...
//	resp, err := s.Execute(ctx, transport.RawDocument(loginXML))
package session
