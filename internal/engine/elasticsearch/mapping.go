package elasticsearch

// indexMapping is applied when an index is created on first use. Documents
// stay dynamic so new projection fields need no migration.
const indexMapping = `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0,
    "analysis": {
      "analyzer": {
        "autocomplete_analyzer": {
          "type": "custom",
          "tokenizer": "autocomplete_tokenizer",
          "filter": ["lowercase"]
        }
      },
      "tokenizer": {
        "autocomplete_tokenizer": {
          "type": "edge_ngram",
          "min_gram": 2,
          "max_gram": 20,
          "token_chars": ["letter", "digit"]
        }
      }
    }
  },
  "mappings": {
    "properties": {
      "id":               { "type": "keyword" },
      "title":            { "type": "text", "fields": { "keyword": { "type": "keyword", "ignore_above": 256 }, "autocomplete": { "type": "text", "analyzer": "autocomplete_analyzer", "search_analyzer": "standard" } } },
      "description":      { "type": "text" },
      "handle":           { "type": "keyword" },
      "status":           { "type": "keyword" },
      "variant_sku":      { "type": "text", "analyzer": "whitespace" },
      "thumbnail":        { "type": "keyword", "index": false },
      "categories":       { "type": "text", "fields": { "keyword": { "type": "keyword" } } },
      "category_handles": { "type": "keyword" }
    }
  }
}`
