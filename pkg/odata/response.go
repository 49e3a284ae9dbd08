package odata

// Response is the OData JSON payload for a collection.
type Response struct {
	Context string `json:"@odata.context"`
	Count   *int64 `json:"@odata.count,omitempty"`
	Value   []Row  `json:"value"`
}

func NewResponse(baseURL string, set *EntitySet, res *Result) Response {
	return Response{
		Context: baseURL + "/odata/$metadata#" + set.Name,
		Count:   res.Count,
		Value:   res.Rows,
	}
}

// Listing is the portal grid payload returned by the Filtered function.
type Listing struct {
	Items []Row `json:"items"`
	Total int64 `json:"total"`
}

func NewListing(res *Result) Listing {
	l := Listing{Items: res.Rows}
	if res.Count != nil {
		l.Total = *res.Count
	} else {
		l.Total = int64(len(res.Rows))
	}
	return l
}
