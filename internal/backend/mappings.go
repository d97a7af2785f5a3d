package backend

import "context"

// ListMappings returns every user to customer mapping.
func (c *Client) ListMappings(ctx context.Context, token string) ([]Mapping, error) {
	var out []Mapping
	err := c.getJSON(ctx, "/user-customer-mappings", token, nil, &out)
	return out, err
}

// MappingsForUser returns the customers linked to one user.
func (c *Client) MappingsForUser(ctx context.Context, token, userID string) ([]Mapping, error) {
	var out []Mapping
	err := c.getJSON(ctx, "/user-customer-mappings/user/"+escape(userID), token, nil, &out)
	return out, err
}

// CreateMapping links a user to a customer.
func (c *Client) CreateMapping(ctx context.Context, token string, in NewMapping) (Mapping, error) {
	var out Mapping
	err := c.postJSON(ctx, "/user-customer-mappings", token, in, &out)
	return out, err
}
