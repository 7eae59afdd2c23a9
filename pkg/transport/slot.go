package transport

// slot holds at most one pending response body. set overwrites, take drains.
type slot struct {
	value string
	full  bool
}

func (s *slot) set(v string) {
	s.value = v
	s.full = true
}

func (s *slot) take() (string, bool) {
	v, ok := s.value, s.full
	s.clear()
	return v, ok
}

func (s *slot) clear() {
	s.value = ""
	s.full = false
}

func (s *slot) pending() bool {
	return s.full
}
