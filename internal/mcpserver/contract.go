package mcpserver

// MarkupFormatContract describes the catalog record and description markup
// format that LLM consumers should follow when adding or editing entries.
const MarkupFormatContract = `# keycat Markup Format Contract

A catalog is an ordered list of entries. Each entry has a **key** (a short
name, e.g. a shortcut or command) and a **description**.

## Descriptions

Descriptions are plain text with optional inline tags:

` + "```" + `
<link="URL" text="LABEL">
<image="FILE" text="LABEL">
<sound="FILE" text="LABEL">
` + "```" + `

## Rules

1. **Single line.** Keys and descriptions cannot contain line breaks.
2. **Keys are required.** Blank keys are rejected.
3. **Attribute values** cannot contain double quotes. There is no escaping
   inside tags; anything that is not a complete tag stays plain text.
4. **Tag kinds** are exactly ` + "`link`, `image` and `sound`" + `. Unknown kinds are kept
   as literal text.
5. **Colons** are fine anywhere; the file format escapes them on save.
6. **Leading and trailing spaces** of keys and descriptions are trimmed.

## Assets

- Upload images and sounds with the ` + "`upload_asset`" + ` tool. It returns a ` + "`tag`" + `
  field ready to paste into a description.
- Assets live in one flat directory; FILE is the bare file name.
- Supported formats: png, jpg, jpeg, gif, webp, svg, mp3, wav, ogg, flac.

## Example

` + "```" + `
key:         copy
description: Copies the selection. <link="https://example.com/copy" text="docs"> <image="copy.png" text="toolbar button">
` + "```" + `
`
