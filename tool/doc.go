// Package tool contains the web-search providers the researcher calls.
//
// Two capabilities are modelled separately: a Searcher returns short ranked
// hits (title, snippet, url) for a keyword query, and an Extractor returns a
// longer block of page text relevant to a query. Tavily provides both. Brave
// provides search only and is paired with a PageExtractor, which fetches the
// top hits over HTTP and converts them to markdown.
//
// Tools wraps a Searcher and an Extractor as langchaingo tools.Tool values
// (SearchTool, ExtractTool). The CLI's lookup command runs them by name, and
// they can be handed to any langchaingo agent.
package tool
