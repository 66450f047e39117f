package feed

import (
	"github.com/beevik/etree"

	"calrss/internal/model"
)

// Render serializes the given items into an RSS 2.0 document.
//
// Items are emitted in input order. Optional item fields with zero values
// are omitted. etree handles escaping of reserved XML characters, including
// inside the HTML-embedded descriptions produced by the rich policy. An
// empty item slice renders a valid channel with zero item elements.
func Render(items []model.FeedItem, channelTitle, channelDescription, channelLink string) (string, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	rss := doc.CreateElement("rss")
	rss.CreateAttr("version", "2.0")

	channel := rss.CreateElement("channel")
	channel.CreateElement("title").SetText(channelTitle)
	channel.CreateElement("description").SetText(channelDescription)
	channel.CreateElement("link").SetText(channelLink)

	for _, it := range items {
		item := channel.CreateElement("item")
		item.CreateElement("title").SetText(it.Title)
		item.CreateElement("description").SetText(it.Description)
		item.CreateElement("pubDate").SetText(it.PubDate)

		if it.Link != "" {
			item.CreateElement("link").SetText(it.Link)
		}
		if it.GUID != "" {
			guid := item.CreateElement("guid")
			guid.CreateAttr("isPermaLink", "false")
			guid.SetText(it.GUID)
		}
		if it.Location != "" {
			item.CreateElement("location").SetText(it.Location)
		}
		if it.Organizer != "" {
			item.CreateElement("organizer").SetText(it.Organizer)
		}
		for _, attendee := range it.Attendees {
			item.CreateElement("attendees").SetText(attendee)
		}
	}

	doc.Indent(2)
	return doc.WriteToString()
}
