package server

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"
)

// categoryPool feeds the category-of-the-day rotation. Curated rather than
// generated so the value is available immediately at startup.
var categoryPool = []string{
	"Potent Potables",
	"World Capitals",
	"Famous Firsts",
	"Science Fiction",
	"The Animal Kingdom",
	"Classical Composers",
	"20th Century Inventions",
	"Rivers of the World",
	"Shakespeare's Plays",
	"Ancient Civilizations",
	"Space Exploration",
	"Culinary Terms",
	"Olympic History",
	"American Presidents",
	"Greek Mythology",
	"Famous Paintings",
	"World Languages",
	"Dinosaurs",
	"Board Games",
	"Islands",
	"The Periodic Table",
	"Broadway Musicals",
	"Mountain Ranges",
	"Nobel Laureates",
	"Silent Films",
	"Video Game History",
	"Constellations",
	"Architecture",
	"Jazz Legends",
	"National Parks",
	"Currencies",
	"Famous Rivalries",
	"Deserts",
	"Inventors",
	"Folklore and Legends",
	"The Renaissance",
}

// categoryOfTheDay is a single process-wide value refreshed hourly,
// independent of any session. Refresh replaces the value wholesale, so
// concurrent readers only ever see a complete value.
type categoryOfTheDay struct {
	mu        sync.RWMutex
	value     string
	updatedAt time.Time
}

func newCategoryOfTheDay() *categoryOfTheDay {
	c := &categoryOfTheDay{}
	c.refresh()
	return c
}

func (c *categoryOfTheDay) refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()

	previous := c.value
	for {
		next := categoryPool[rand.Intn(len(categoryPool))]
		if next != previous || len(categoryPool) == 1 {
			c.value = next
			break
		}
	}
	c.updatedAt = time.Now()
}

func (c *categoryOfTheDay) current() (string, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.updatedAt
}

// cotdTask refreshes the shared category once per hour.
func (s *Server) cotdTask(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CategoryRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cotd.refresh()
			value, _ := s.cotd.current()
			log.Printf("Category of the day refreshed: %s", value)
		}
	}
}
