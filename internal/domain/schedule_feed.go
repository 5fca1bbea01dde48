package domain

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"onair/internal/util"
)

type scheduleDoc struct {
	DayStart string        `xml:"daystart,attr"`
	Shows    []scheduleXML `xml:"show"`
}

type scheduleXML struct {
	ID          string `xml:"id,attr"`
	Name        string `xml:"name"`
	Day         string `xml:"day"`
	DayStr      string `xml:"day_str"`
	Time        string `xml:"time"`
	TimeStr     string `xml:"time_str"`
	Length      string `xml:"length"`
	Alternates  string `xml:"alternates"`
	Hosts       string `xml:"hosts"`
	MultiHosts  string `xml:"multihosts"`
	Producers   string `xml:"producers"`
	URL         string `xml:"url"`
	Email       string `xml:"email"`
	Description string `xml:"description"`
}

type archiveDoc struct {
	SeasonStart string           `xml:"season_start,attr"`
	Shows       []archiveShowXML `xml:"show"`
}

type archiveShowXML struct {
	ID       string       `xml:"id,attr"`
	Name     string       `xml:"name"`
	Archives []archiveXML `xml:"archive"`
}

type archiveXML struct {
	URL  string `xml:"url"`
	Date string `xml:"date"`
	Size string `xml:"size"`
}

// ParseScheduleFeed decodes the schedule XML into slots in feed order and the
// broadcast-day boundary.
//
// A show with a non-numeric day, time or length fails the whole document: a
// half-parsed grid would resolve songs to the wrong shows.
func ParseScheduleFeed(data []byte) ([]ShowSlot, int, error) {
	var doc scheduleDoc
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return nil, 0, fmt.Errorf("decode schedule xml: %w", err)
	}
	dayStart := 0
	if s := strings.TrimSpace(doc.DayStart); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 || n >= util.MinutesPerDay {
			return nil, 0, fmt.Errorf("invalid daystart %q", doc.DayStart)
		}
		dayStart = n
	}

	slots := make([]ShowSlot, 0, len(doc.Shows))
	for i, sx := range doc.Shows {
		day, err := atoiField(sx.Day, "day", i)
		if err != nil {
			return nil, 0, err
		}
		if day < 0 || day > WeekdaysSentinel {
			return nil, 0, fmt.Errorf("show %d: day %d out of range", i, day)
		}
		start, err := atoiField(sx.Time, "time", i)
		if err != nil {
			return nil, 0, err
		}
		if start < 0 || start >= util.MinutesPerDay {
			return nil, 0, fmt.Errorf("show %d: time %d out of range", i, start)
		}
		length, err := atoiField(sx.Length, "length", i)
		if err != nil {
			return nil, 0, err
		}
		alt := 0
		if strings.TrimSpace(sx.Alternates) != "" {
			if alt, err = atoiField(sx.Alternates, "alternates", i); err != nil {
				return nil, 0, err
			}
		}
		id := strings.TrimSpace(sx.ID)
		if id == "" {
			id = fmt.Sprintf("slot-%d", i)
		}
		slots = append(slots, ShowSlot{
			ID:          id,
			Name:        strings.TrimSpace(sx.Name),
			Day:         day,
			DayLabel:    strings.TrimSpace(sx.DayStr),
			Start:       start,
			TimeLabel:   strings.TrimSpace(sx.TimeStr),
			Length:      length,
			Alternates:  AlternationCode(alt),
			Hosts:       strings.TrimSpace(sx.Hosts),
			MultiHosts:  strings.TrimSpace(sx.MultiHosts),
			Producers:   strings.TrimSpace(sx.Producers),
			URL:         strings.TrimSpace(sx.URL),
			Email:       strings.TrimSpace(sx.Email),
			Description: strings.TrimSpace(sx.Description),
		})
	}
	return slots, dayStart, nil
}

// ParseArchiveFeed decodes the archive XML. Rebroadcast recordings are left
// out, and an unreadable season_start leaves the season unknown rather than
// failing the feed.
func ParseArchiveFeed(data []byte, loc *time.Location) ([]ArchiveShow, time.Time, error) {
	var doc archiveDoc
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode archive xml: %w", err)
	}
	var season time.Time
	if t, err := util.ParseFeedTime(doc.SeasonStart, loc); err == nil {
		season = util.Midnight(t)
	}

	shows := make([]ArchiveShow, 0, len(doc.Shows))
	for _, sx := range doc.Shows {
		show := ArchiveShow{ID: strings.TrimSpace(sx.ID), Name: strings.TrimSpace(sx.Name), Archives: make([]Archive, 0, len(sx.Archives))}
		for _, ax := range sx.Archives {
			u := strings.TrimSpace(ax.URL)
			if u == "" || strings.Contains(u, "rebroadcast") {
				continue
			}
			a := Archive{URL: u, Date: strings.TrimSpace(ax.Date), Size: strings.TrimSpace(ax.Size)}
			if t, err := util.ParseFeedTime(a.Date, loc); err == nil {
				a.StartsAt = t
			}
			show.Archives = append(show.Archives, a)
		}
		shows = append(shows, show)
	}
	return shows, season, nil
}

func atoiField(raw, field string, index int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("show %d: invalid %s %q", index, field, raw)
	}
	return n, nil
}
