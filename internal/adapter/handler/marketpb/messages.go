package marketpb

// Field numbers and names in the protobuf tags follow marketplace.proto; the
// file descriptor is assembled from them.

// Reply is returned by every mutating call. Code is the stable error name
// ("NotListed", "PriceNotMet", ...) and empty on success.
type Reply struct {
	Success bool   `protobuf:"varint,1,opt,name=success,proto3" json:"success"`
	Code    string `protobuf:"bytes,2,opt,name=code,proto3" json:"code,omitempty"`
	Message string `protobuf:"bytes,3,opt,name=message,proto3" json:"message"`
}

type ListItemRequest struct {
	Collection string `protobuf:"bytes,1,opt,name=collection,proto3" json:"collection"`
	TokenId    string `protobuf:"bytes,2,opt,name=token_id,proto3" json:"token_id"`
	Price      string `protobuf:"bytes,3,opt,name=price,proto3" json:"price"`
	Caller     string `protobuf:"bytes,4,opt,name=caller,proto3" json:"caller"`
}

type CancelListingRequest struct {
	Collection string `protobuf:"bytes,1,opt,name=collection,proto3" json:"collection"`
	TokenId    string `protobuf:"bytes,2,opt,name=token_id,proto3" json:"token_id"`
	Caller     string `protobuf:"bytes,3,opt,name=caller,proto3" json:"caller"`
}

type UpdateListingRequest struct {
	Collection string `protobuf:"bytes,1,opt,name=collection,proto3" json:"collection"`
	TokenId    string `protobuf:"bytes,2,opt,name=token_id,proto3" json:"token_id"`
	NewPrice   string `protobuf:"bytes,3,opt,name=new_price,proto3" json:"new_price"`
	Caller     string `protobuf:"bytes,4,opt,name=caller,proto3" json:"caller"`
}

type BuyItemRequest struct {
	RequestId  string `protobuf:"bytes,1,opt,name=request_id,proto3" json:"request_id"`
	Collection string `protobuf:"bytes,2,opt,name=collection,proto3" json:"collection"`
	TokenId    string `protobuf:"bytes,3,opt,name=token_id,proto3" json:"token_id"`
	PaidAmount string `protobuf:"bytes,4,opt,name=paid_amount,proto3" json:"paid_amount"`
	Buyer      string `protobuf:"bytes,5,opt,name=buyer,proto3" json:"buyer"`
}

type WithdrawProceedsRequest struct {
	RequestId string `protobuf:"bytes,1,opt,name=request_id,proto3" json:"request_id"`
	Caller    string `protobuf:"bytes,2,opt,name=caller,proto3" json:"caller"`
}

type GetListingRequest struct {
	Collection string `protobuf:"bytes,1,opt,name=collection,proto3" json:"collection"`
	TokenId    string `protobuf:"bytes,2,opt,name=token_id,proto3" json:"token_id"`
}

type GetListingResponse struct {
	Collection string `protobuf:"bytes,1,opt,name=collection,proto3" json:"collection"`
	TokenId    string `protobuf:"bytes,2,opt,name=token_id,proto3" json:"token_id"`
	Seller     string `protobuf:"bytes,3,opt,name=seller,proto3" json:"seller"`
	Price      string `protobuf:"bytes,4,opt,name=price,proto3" json:"price"`
}

type GetProceedsRequest struct {
	Account string `protobuf:"bytes,1,opt,name=account,proto3" json:"account"`
}

type GetProceedsResponse struct {
	Account string `protobuf:"bytes,1,opt,name=account,proto3" json:"account"`
	Amount  string `protobuf:"bytes,2,opt,name=amount,proto3" json:"amount"`
}
