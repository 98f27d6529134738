package domain

import "fmt"

// ImageSet tracks the images of a property being edited: the URLs already
// persisted when the edit started and the URLs uploaded during the edit.
// Indexes address the concatenation persisted ++ pending; the boundary is
// len(persisted) as captured at load time.
type ImageSet struct {
	persisted []string
	pending   []string
}

// NewImageSet starts an edit session over the stored image list
func NewImageSet(stored []string) *ImageSet {
	return &ImageSet{persisted: append([]string(nil), stored...)}
}

// Add appends newly uploaded URLs
func (s *ImageSet) Add(urls ...string) {
	for _, u := range urls {
		if u != "" {
			s.pending = append(s.pending, u)
		}
	}
}

// Remove drops the image at index i of the combined list
func (s *ImageSet) Remove(i int) error {
	switch {
	case i < 0 || i >= s.Len():
		return fmt.Errorf("image index %d out of range [0,%d)", i, s.Len())
	case i < len(s.persisted):
		s.persisted = append(s.persisted[:i], s.persisted[i+1:]...)
	default:
		j := i - len(s.persisted)
		s.pending = append(s.pending[:j], s.pending[j+1:]...)
	}
	return nil
}

// Retain keeps only the persisted URLs listed in keep, in their stored order.
// URLs in keep that were never stored are reported as an error.
func (s *ImageSet) Retain(keep []string) error {
	stored := make(map[string]bool, len(s.persisted))
	for _, u := range s.persisted {
		stored[u] = true
	}
	wanted := make(map[string]bool, len(keep))
	for _, u := range keep {
		if !stored[u] {
			return fmt.Errorf("image %q is not part of this property", u)
		}
		wanted[u] = true
	}
	kept := s.persisted[:0]
	for _, u := range s.persisted {
		if wanted[u] {
			kept = append(kept, u)
		}
	}
	s.persisted = kept
	return nil
}

// Len returns the size of the combined list
func (s *ImageSet) Len() int {
	return len(s.persisted) + len(s.pending)
}

// Persisted returns the retained stored URLs
func (s *ImageSet) Persisted() []string {
	return append([]string(nil), s.persisted...)
}

// Pending returns the URLs added during the edit
func (s *ImageSet) Pending() []string {
	return append([]string(nil), s.pending...)
}

// Final returns persisted followed by pending, without duplicates
func (s *ImageSet) Final() []string {
	seen := make(map[string]bool, s.Len())
	out := make([]string, 0, s.Len())
	for _, list := range [][]string{s.persisted, s.pending} {
		for _, u := range list {
			if !seen[u] {
				seen[u] = true
				out = append(out, u)
			}
		}
	}
	return out
}

// DroppedImages returns the URLs of before that are absent from after
func DroppedImages(before, after []string) []string {
	keep := make(map[string]bool, len(after))
	for _, u := range after {
		keep[u] = true
	}
	var out []string
	for _, u := range before {
		if u != "" && !keep[u] {
			keep[u] = true
			out = append(out, u)
		}
	}
	return out
}
