package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/John-Robertt/lbxd/internal/domain"
)

const (
	FormatHTML     = "html"
	FormatMarkdown = "md"
	FormatJSON     = "json"
)

const (
	likedMark   = "♥"
	spoilerMark = "[spoiler]"
	unrated     = "–"
)

// Render 按 format 渲染报告。report 应已 Finalize。
func Render(format string, r domain.CompareReport) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatHTML:
		return HTML(r), nil
	case FormatMarkdown:
		return Markdown(r), nil
	case FormatJSON:
		return JSON(r)
	default:
		return nil, fmt.Errorf("不支持的输出格式：%q", format)
	}
}

// DefaultBase 返回默认输出文件名（不含扩展名）：用户名排序后用 _ 连接。
func DefaultBase(users []string) string {
	s := append([]string(nil), users...)
	sort.Strings(s)
	return strings.Join(s, "_")
}

// OutputPath 把 base 的扩展名替换为 format（无扩展名则追加）。
func OutputPath(base, format string) string {
	return strings.TrimSuffix(base, filepath.Ext(base)) + "." + strings.ToLower(format)
}

// JSON 输出带缩进的 JSON（末尾换行）。
func JSON(r domain.CompareReport) ([]byte, error) {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Markdown 输出 GitHub 风格的 Markdown 文档。
func Markdown(r domain.CompareReport) []byte {
	var b bytes.Buffer
	users := r.FoundUsers()

	fmt.Fprintf(&b, "# Letterboxd: %s\n\n", strings.Join(users, ", "))
	b.WriteString("## Users\n\n")
	b.WriteString(usersTable(r).RenderMarkdown())
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "## Common films (%d)\n\n", len(r.Common))
	if len(r.Common) == 0 {
		b.WriteString("_None._\n")
	} else {
		b.WriteString(commonTable(r, users).RenderMarkdown())
		b.WriteString("\n")
	}

	if reviewed := reviewedFilms(r); len(reviewed) > 0 {
		b.WriteString("\n## Reviews\n")
		for _, c := range reviewed {
			fmt.Fprintf(&b, "\n### %s\n\n", filmLabel(c))
			for _, e := range c.Entries {
				if !hasReview(e) {
					continue
				}
				fmt.Fprintf(&b, "**%s**", e.Username)
				if e.Spoiler {
					b.WriteString(" " + spoilerMark)
				}
				b.WriteString("\n\n")
				for _, line := range strings.Split(e.Review, "\n") {
					b.WriteString("> " + line + "\n")
				}
				b.WriteString("\n")
			}
		}
	}

	for _, u := range r.Users {
		if u.Status != domain.StatusFound {
			continue
		}
		fmt.Fprintf(&b, "\n## Only %s (%d)\n\n", u.Username, len(u.Only))
		if len(u.Only) == 0 {
			b.WriteString("_None._\n")
			continue
		}
		for _, id := range u.Only {
			b.WriteString("- " + id + "\n")
		}
	}
	return b.Bytes()
}

const htmlHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; margin-bottom: 1.5em; }
th, td { border: 1px solid #ccc; padding: 4px 8px; vertical-align: top; }
th { background: #f4f4f4; }
blockquote { margin: 0.3em 0 1em 1em; color: #333; }
.spoiler { color: #b00; font-size: 0.85em; }
</style>
</head>
<body>
`

// HTML 输出独立的 HTML 文档（表格由 go-pretty 渲染，文本均已转义）。
func HTML(r domain.CompareReport) []byte {
	var b bytes.Buffer
	users := r.FoundUsers()
	title := "Letterboxd: " + strings.Join(users, ", ")

	fmt.Fprintf(&b, htmlHead, html.EscapeString(title))
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(title))

	b.WriteString("<h2>Users</h2>\n")
	b.WriteString(htmlTable(usersTable(r), "lbxd-users"))
	b.WriteString("\n")

	fmt.Fprintf(&b, "<h2>Common films (%d)</h2>\n", len(r.Common))
	if len(r.Common) == 0 {
		b.WriteString("<p><em>None.</em></p>\n")
	} else {
		b.WriteString(htmlTable(commonTable(r, users), "lbxd-common"))
		b.WriteString("\n")
	}

	if reviewed := reviewedFilms(r); len(reviewed) > 0 {
		b.WriteString("<h2>Reviews</h2>\n")
		for _, c := range reviewed {
			fmt.Fprintf(&b, "<h3>%s</h3>\n", html.EscapeString(filmLabel(c)))
			for _, e := range c.Entries {
				if !hasReview(e) {
					continue
				}
				fmt.Fprintf(&b, "<p><strong>%s</strong>", html.EscapeString(e.Username))
				if e.Spoiler {
					fmt.Fprintf(&b, ` <span class="spoiler">%s</span>`, spoilerMark)
				}
				b.WriteString("</p>\n<blockquote>")
				paras := strings.Split(e.Review, "\n")
				for i, p := range paras {
					if i > 0 {
						b.WriteString("<br/>")
					}
					b.WriteString(html.EscapeString(p))
				}
				b.WriteString("</blockquote>\n")
			}
		}
	}

	for _, u := range r.Users {
		if u.Status != domain.StatusFound {
			continue
		}
		fmt.Fprintf(&b, "<h2>Only %s (%d)</h2>\n", html.EscapeString(u.Username), len(u.Only))
		if len(u.Only) == 0 {
			b.WriteString("<p><em>None.</em></p>\n")
			continue
		}
		b.WriteString("<ul>\n")
		for _, id := range u.Only {
			fmt.Fprintf(&b, "<li>%s</li>\n", html.EscapeString(id))
		}
		b.WriteString("</ul>\n")
	}

	b.WriteString("</body>\n</html>\n")
	return b.Bytes()
}

// SummaryTable 返回终端用的汇总表（圆角样式）。
func SummaryTable(r domain.CompareReport) string {
	tw := usersTable(r)
	tw.SetStyle(table.StyleRounded)
	tw.AppendFooter(table.Row{"common", "", strconv.Itoa(r.Summary.Common), "", ""})
	return tw.Render()
}

func usersTable(r domain.CompareReport) table.Writer {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"User", "Status", "Films", "Only", "Error"})
	for _, u := range r.Users {
		films, only := "", ""
		if u.Status == domain.StatusFound {
			films = strconv.Itoa(u.Films)
			only = strconv.Itoa(len(u.Only))
		}
		tw.AppendRow(table.Row{u.Username, u.Status, films, only, u.ErrorMsg})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw
}

// commonTable：每行一部共同影片，每个用户一列（星级 + 喜欢标记）。
func commonTable(r domain.CompareReport, users []string) table.Writer {
	tw := table.NewWriter()
	header := table.Row{"Film", "Year"}
	for _, u := range users {
		header = append(header, u)
	}
	tw.AppendHeader(header)

	for _, c := range r.Common {
		byUser := make(map[string]domain.FilmEntry, len(c.Entries))
		for _, e := range c.Entries {
			byUser[e.Username] = e
		}
		year := ""
		if c.Year > 0 {
			year = strconv.Itoa(c.Year)
		}
		row := table.Row{filmTitle(c), year}
		for _, u := range users {
			row = append(row, entryCell(byUser[u]))
		}
		tw.AppendRow(row)
	}
	return tw
}

func entryCell(e domain.FilmEntry) string {
	s := e.Stars
	if s == "" {
		s = unrated
	}
	if e.Liked {
		s += " " + likedMark
	}
	return s
}

func htmlTable(tw table.Writer, class string) string {
	tw.Style().HTML = table.HTMLOptions{
		CSSClass:    class,
		EmptyColumn: "&nbsp;",
		EscapeText:  true,
		Newline:     "<br/>",
	}
	return tw.RenderHTML()
}

func reviewedFilms(r domain.CompareReport) []domain.CommonFilm {
	var out []domain.CommonFilm
	for _, c := range r.Common {
		for _, e := range c.Entries {
			if hasReview(e) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func hasReview(e domain.FilmEntry) bool { return e.Reviewed && e.Review != "" }

func filmTitle(c domain.CommonFilm) string {
	if c.Title != "" {
		return c.Title
	}
	return c.ID
}

func filmLabel(c domain.CommonFilm) string {
	if c.Year > 0 {
		return fmt.Sprintf("%s (%d)", filmTitle(c), c.Year)
	}
	return filmTitle(c)
}
