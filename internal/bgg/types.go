package bgg

import "encoding/xml"

// IntValue decodes BGG's <tag value="N"/> convention for numeric fields.
type IntValue struct {
	Value int `xml:"value,attr" json:"value"`
}

// StrValue decodes BGG's <tag value="..."/> convention for string fields.
type StrValue struct {
	Value string `xml:"value,attr" json:"value"`
}

// Items is the envelope of a thing (item detail) response.
type Items struct {
	XMLName xml.Name `xml:"items" json:"-"`
	Items   []Item   `xml:"item" json:"items"`
}

// Item is one catalog item (a board game) as returned by the thing endpoint.
// The trailing fields are enrichment attached by the aggregator and only
// appear in JSON output.
type Item struct {
	ID            int         `xml:"id,attr" json:"id"`
	Type          string      `xml:"type,attr" json:"type,omitempty"`
	Thumbnail     string      `xml:"thumbnail" json:"thumbnail,omitempty"`
	Image         string      `xml:"image" json:"image,omitempty"`
	Names         []ItemName  `xml:"name" json:"names,omitempty"`
	Description   string      `xml:"description" json:"description,omitempty"`
	YearPublished IntValue    `xml:"yearpublished" json:"yearPublished"`
	MinPlayers    IntValue    `xml:"minplayers" json:"minPlayers"`
	MaxPlayers    IntValue    `xml:"maxplayers" json:"maxPlayers"`
	PlayingTime   IntValue    `xml:"playingtime" json:"playingTime"`
	MinPlayTime   IntValue    `xml:"minplaytime" json:"minPlayTime"`
	MaxPlayTime   IntValue    `xml:"maxplaytime" json:"maxPlayTime"`
	MinAge        IntValue    `xml:"minage" json:"minAge"`
	Polls         []Poll      `xml:"poll" json:"polls,omitempty"`
	Links         []Link      `xml:"link" json:"links,omitempty"`
	Statistics    *Statistics `xml:"statistics" json:"statistics,omitempty"`

	HotnessRank        int                 `xml:"-" json:"hotnessRank,omitempty"`
	PlayerCountSummary *PlayerCountSummary `xml:"-" json:"playerCountSummary,omitempty"`
	PlayerAgeSummary   *PlayerAgeSummary   `xml:"-" json:"playerAgeSummary,omitempty"`
	UserStats          *UserItemStats      `xml:"-" json:"userStats,omitempty"`
}

// PrimaryName returns the item's primary name, or the first name present.
func (it *Item) PrimaryName() string {
	for _, n := range it.Names {
		if n.Type == "primary" {
			return n.Value
		}
	}
	if len(it.Names) > 0 {
		return it.Names[0].Value
	}
	return ""
}

// ItemName is one of an item's names (primary or alternate).
type ItemName struct {
	Type  string `xml:"type,attr" json:"type"`
	Value string `xml:"value,attr" json:"value"`
}

// Link relates an item to a category, mechanic, family, designer, etc.
type Link struct {
	Type  string `xml:"type,attr" json:"type"`
	ID    int    `xml:"id,attr" json:"id"`
	Value string `xml:"value,attr" json:"value"`
}

// Poll is a community vote attached to an item, such as the suggested
// player count.
type Poll struct {
	Name       string        `xml:"name,attr" json:"name"`
	Title      string        `xml:"title,attr" json:"title,omitempty"`
	TotalVotes int           `xml:"totalvotes,attr" json:"totalVotes"`
	Results    []PollResults `xml:"results" json:"results,omitempty"`
}

// PollResults groups the vote options for one poll bucket. For the player
// count poll there is one bucket per player count; other polls have a
// single unnamed bucket.
type PollResults struct {
	NumPlayers string       `xml:"numplayers,attr" json:"numPlayers,omitempty"`
	Options    []PollOption `xml:"result" json:"options,omitempty"`
}

// PollOption is one votable option and its tally.
type PollOption struct {
	Value    string `xml:"value,attr" json:"value"`
	NumVotes int    `xml:"numvotes,attr" json:"numVotes"`
}

// Statistics carries the ratings block of a thing response.
type Statistics struct {
	Ratings Ratings `xml:"ratings" json:"ratings"`
}

// Ratings holds aggregate community rating data for an item.
type Ratings struct {
	UsersRated   IntValue `xml:"usersrated" json:"usersRated"`
	Average      StrValue `xml:"average" json:"average"`
	BayesAverage StrValue `xml:"bayesaverage" json:"bayesAverage"`
	Ranks        []Rank   `xml:"ranks>rank" json:"ranks,omitempty"`
}

// Rank is one ranking entry (overall or per-family) for an item.
type Rank struct {
	Type         string `xml:"type,attr" json:"type"`
	ID           int    `xml:"id,attr" json:"id"`
	Name         string `xml:"name,attr" json:"name"`
	FriendlyName string `xml:"friendlyname,attr" json:"friendlyName"`
	Value        string `xml:"value,attr" json:"value"`
}

// Collection is the envelope of a collection (listing) response.
type Collection struct {
	XMLName    xml.Name         `xml:"items" json:"-"`
	TotalItems int              `xml:"totalitems,attr" json:"totalItems"`
	Items      []CollectionItem `xml:"item" json:"items,omitempty"`
}

// CollectionItem is one entry in a user's listing. Brief listings carry
// only the identifier, name and status flags; richer listings add play
// counts, comments and the user's rating.
type CollectionItem struct {
	ObjectID int               `xml:"objectid,attr" json:"objectId"`
	Subtype  string            `xml:"subtype,attr" json:"subtype,omitempty"`
	Name     string            `xml:"name" json:"name,omitempty"`
	Status   CollectionStatus  `xml:"status" json:"status"`
	NumPlays int               `xml:"numplays" json:"numPlays,omitempty"`
	Comment  string            `xml:"comment" json:"comment,omitempty"`
	Stats    *CollectionRating `xml:"stats>rating" json:"rating,omitempty"`
}

// CollectionStatus carries the ownership and wishlist flags. BGG encodes
// booleans as "0"/"1" attributes.
type CollectionStatus struct {
	Own              int `xml:"own,attr" json:"own"`
	PrevOwned        int `xml:"prevowned,attr" json:"prevOwned"`
	ForTrade         int `xml:"fortrade,attr" json:"forTrade"`
	Want             int `xml:"want,attr" json:"want"`
	WantToPlay       int `xml:"wanttoplay,attr" json:"wantToPlay"`
	WantToBuy        int `xml:"wanttobuy,attr" json:"wantToBuy"`
	Wishlist         int `xml:"wishlist,attr" json:"wishlist"`
	WishlistPriority int `xml:"wishlistpriority,attr" json:"wishlistPriority,omitempty"`
	PreOrdered       int `xml:"preordered,attr" json:"preOrdered"`
}

// CollectionRating is the user's own rating of a listed item. The value is
// "N/A" when unrated, so it stays a string until correlation.
type CollectionRating struct {
	Value string `xml:"value,attr" json:"value"`
}

// User is a BGG user profile.
type User struct {
	XMLName        xml.Name   `xml:"user" json:"-"`
	ID             int        `xml:"id,attr" json:"id"`
	Name           string     `xml:"name,attr" json:"name"`
	FirstName      StrValue   `xml:"firstname" json:"firstName"`
	LastName       StrValue   `xml:"lastname" json:"lastName"`
	AvatarLink     StrValue   `xml:"avatarlink" json:"avatarLink"`
	YearRegistered IntValue   `xml:"yearregistered" json:"yearRegistered"`
	LastLogin      StrValue   `xml:"lastlogin" json:"lastLogin"`
	Country        StrValue   `xml:"country" json:"country"`
	TradeRating    IntValue   `xml:"traderating" json:"tradeRating"`
	Buddies        BuddyList  `xml:"buddies" json:"buddies"`
	Guilds         GuildList  `xml:"guilds" json:"guilds"`
	Hot            RankedList `xml:"hot" json:"hot"`
	Top            RankedList `xml:"top" json:"top"`
}

// BuddyList is a user's buddy roster.
type BuddyList struct {
	Total   int     `xml:"total,attr" json:"total"`
	Buddies []Buddy `xml:"buddy" json:"buddies,omitempty"`
}

// Buddy is one entry in a buddy roster.
type Buddy struct {
	ID   int    `xml:"id,attr" json:"id"`
	Name string `xml:"name,attr" json:"name"`
}

// GuildList is a user's guild memberships.
type GuildList struct {
	Total  int     `xml:"total,attr" json:"total"`
	Guilds []Guild `xml:"guild" json:"guilds,omitempty"`
}

// Guild is one guild membership.
type Guild struct {
	ID   int    `xml:"id,attr" json:"id"`
	Name string `xml:"name,attr" json:"name"`
}

// RankedList holds a user's hot or top ten items.
type RankedList struct {
	Domain string       `xml:"domain,attr" json:"domain,omitempty"`
	Items  []RankedItem `xml:"item" json:"items,omitempty"`
}

// RankedItem is one entry in a ranked user list.
type RankedItem struct {
	Rank int    `xml:"rank,attr" json:"rank"`
	ID   int    `xml:"id,attr" json:"id"`
	Name string `xml:"name,attr" json:"name"`
}

// Plays is a user's logged-plays response. ThumbnailURLs is enrichment
// attached by the aggregator, keyed by item identifier.
type Plays struct {
	XMLName  xml.Name `xml:"plays" json:"-"`
	Username string   `xml:"username,attr" json:"username"`
	UserID   int      `xml:"userid,attr" json:"userId"`
	Total    int      `xml:"total,attr" json:"total"`
	Page     int      `xml:"page,attr" json:"page"`
	Plays    []Play   `xml:"play" json:"plays,omitempty"`

	ThumbnailURLs map[int]string `xml:"-" json:"thumbnailURLs,omitempty"`
}

// Play is one logged play.
type Play struct {
	ID       int      `xml:"id,attr" json:"id"`
	Date     string   `xml:"date,attr" json:"date"`
	Quantity int      `xml:"quantity,attr" json:"quantity"`
	Length   int      `xml:"length,attr" json:"length"`
	Location string   `xml:"location,attr" json:"location,omitempty"`
	Item     PlayItem `xml:"item" json:"item"`
}

// PlayItem identifies the game a play was logged against.
type PlayItem struct {
	Name     string `xml:"name,attr" json:"name"`
	ObjectID int    `xml:"objectid,attr" json:"objectId"`
}

// HotList is the envelope of a trending (hot) listing response.
type HotList struct {
	XMLName xml.Name  `xml:"items" json:"-"`
	Items   []HotItem `xml:"item" json:"items"`
}

// HotItem is one entry in the trending listing. It carries only a rank and
// identifying data; details come from a follow-up thing request.
type HotItem struct {
	ID            int      `xml:"id,attr" json:"id"`
	Rank          int      `xml:"rank,attr" json:"rank"`
	Name          StrValue `xml:"name" json:"name"`
	Thumbnail     StrValue `xml:"thumbnail" json:"thumbnail"`
	YearPublished IntValue `xml:"yearpublished" json:"yearPublished"`
}

// UserItemStats is per-user data correlated onto an item record: the
// user's own rating, comment and play count from their listings.
type UserItemStats struct {
	Rating   float64 `json:"rating,omitempty"`
	Comment  string  `json:"comment,omitempty"`
	NumPlays int     `json:"numPlays,omitempty"`
	Owned    bool    `json:"owned,omitempty"`
}
