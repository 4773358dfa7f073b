package mcpserver

// PostFormatContract describes the Markdown post format that LLM consumers
// should follow when creating or editing posts.
const PostFormatContract = `# Folio Post Format Contract

Every post lives under ` + "`" + `posts/` + "`" + ` in the content root and is published at
the same path with ` + "`" + `.md` + "`" + ` replaced by ` + "`" + `.html` + "`" + `.
` + "`" + `index.md` + "`" + ` files are section pages, not posts.

## Structure

` + "```" + `markdown
---
updateTime: "2025-01-15 09:30"   # OPTIONAL – used when date is absent
date: "2025-01-15"               # OPTIONAL – YYYY-MM-DD; orders posts newest first
desc: "One-line summary"         # OPTIONAL – also accepted as description
tags: "go, concurrency"          # OPTIONAL – string or YAML list
categories: [Backend]            # OPTIONAL – string or YAML list
outline: deep                    # OPTIONAL
hidden: false                    # OPTIONAL – true excludes the post everywhere
---

# Human-readable title

Body text in standard Markdown.
` + "```" + `

TOML frontmatter fenced by ` + "`" + `+++` + "`" + ` is accepted as well.

## Taxonomy rules

1. **tags** and **categories** accept a list or a single string.
2. A string is split on ` + "`" + `,` + "`" + `, ` + "`" + `/` + "`" + `, and ` + "`" + `|` + "`" + `; each label is trimmed and
   empty pieces are dropped. Duplicates within one post are ignored.
3. Labels are case-sensitive: ` + "`" + `Go` + "`" + ` and ` + "`" + `go` + "`" + ` are different groups.
4. Each group gets a slug id: lowercase, with runs of spaces, dashes,
   slashes, and pipes collapsed into one dash.
   ` + "`" + `Machine Learning` + "`" + ` becomes ` + "`" + `machine-learning` + "`" + `.
5. Groups are ordered by post count, then by label in natural order
   (` + "`" + `item2` + "`" + ` before ` + "`" + `item10` + "`" + `).

## Title

The frontmatter ` + "`" + `title` + "`" + ` wins; otherwise the first ` + "`" + `# ` + "`" + ` heading of the body
is used.

## Example

` + "```" + `markdown
---
updateTime: "2025-01-20 18:05"
date: "2025-01-20"
desc: "Cancelling goroutines cleanly"
tags: "go, concurrency"
categories: Backend
outline: deep
---

# Context cancellation

Pass a context.Context as the first argument of every blocking call.
` + "```" + `
`
