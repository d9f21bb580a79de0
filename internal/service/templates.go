package service

import (
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

// certificateData feeds the certificate email templates.
type certificateData struct {
	Name       string
	Role       string
	Conference string
	Dates      string
}

const attendeeText = `Dear {{.Name}},

Thank you for participating at {{.Conference}}. Attached is your Certificate of Participation for
{{.Conference}} held from {{.Dates}}.

* Recap

Check out our conference recap for a summary of what we've accomplished at this year's conference.

https://conference.pyladies.com/news/pyladiescon-ends/

* Post-Conference Survey

We also would like to invite you to share feedback about the conference so that we
can improve and make the next conference even better. Please take a few minutes to fill out this form.

https://forms.gle/8TYAXnQAMz9GUPsA8

* Stay in touch

Get news about PyLadiesCon by following us across social media platforms, and by subscribing to our YouTube channel and RSS Feed.

- Mastodon: https://fosstodon.org/@pyladiescon
- BlueSky: https://bsky.app/profile/pyladiescon.bsky.social
- Instagram: https://instagram.com/pyladiescon
- LinkedIn: https://www.linkedin.com/company/pyladiescon
- YouTube: https://www.youtube.com/@PyLadiesGlobal
- RSS Feed: https://conference.pyladies.com/index.xml

Use our hashtags: #PyLadiesCon and #PyLadies.

PyLadiesCon Organizers
`

const attendeeHTML = `<p>Dear {{.Name}},</p>
<p>Thank you for participating at {{.Conference}}. Attached is your Certificate of Participation for
{{.Conference}} held from {{.Dates}}.</p>
<p><b>Recap</b></p>
<p>Check out our <a href="https://conference.pyladies.com/news/pyladiescon-ends/">conference recap</a> for a summary of what we've accomplished at this year's conference.
Watch any missed talks on our <a href="https://www.youtube.com/playlist?list=PLOItnwPQ-eHxWh6Af6xRuKprSk_OBU0cL">YouTube Playlist</a>.</p>
<p><b>Post-Conference Survey</b></p>
<p>We also would like to invite you to share feedback about the conference so that we
can improve and make the next conference even better. Please take a few minutes to fill out
<a href="https://forms.gle/8TYAXnQAMz9GUPsA8"><b>this form</b></a>.</p>
<p><b>Stay in touch</b></p>
<p>Get news about PyLadiesCon by following us on <a href="https://fosstodon.org/@pyladiescon">Mastodon</a>,
<a href="https://bsky.app/profile/pyladiescon.bsky.social">Bluesky</a>,
<a href="https://instagram.com/pyladiescon">Instagram</a> and
<a href="https://www.linkedin.com/company/pyladiescon">LinkedIn</a>.</p>
<p>Use our hashtags <b>#PyLadiesCon</b> and <b>#PyLadies</b>.</p>
<p>PyLadiesCon Organizers</p>
`

const contributorText = `Dear {{.Name}},

Thank you for being a {{.Role}} at {{.Conference}}. Attached is your Certificate of Participation for
{{.Conference}} held from {{.Dates}}.

PyLadiesCon Organizers
`

const contributorHTML = `<p>Dear {{.Name}},</p>
<p>Thank you for being a {{.Role}} at {{.Conference}}. Attached is your Certificate of Participation for
{{.Conference}} held from {{.Dates}}.</p>
<p>PyLadiesCon Organizers</p>
`

var (
	attendeeTextTmpl    = texttemplate.Must(texttemplate.New("attendee.txt").Parse(attendeeText))
	attendeeHTMLTmpl    = htmltemplate.Must(htmltemplate.New("attendee.html").Parse(attendeeHTML))
	contributorTextTmpl = texttemplate.Must(texttemplate.New("contributor.txt").Parse(contributorText))
	contributorHTMLTmpl = htmltemplate.Must(htmltemplate.New("contributor.html").Parse(contributorHTML))
)

type templatePair struct {
	text *texttemplate.Template
	html *htmltemplate.Template
}

var (
	attendeeTemplates    = templatePair{attendeeTextTmpl, attendeeHTMLTmpl}
	contributorTemplates = templatePair{contributorTextTmpl, contributorHTMLTmpl}
)

func (p templatePair) render(data certificateData) (text, html string, err error) {
	var tb, hb strings.Builder
	if err := p.text.Execute(&tb, data); err != nil {
		return "", "", err
	}
	if err := p.html.Execute(&hb, data); err != nil {
		return "", "", err
	}
	return tb.String(), hb.String(), nil
}
